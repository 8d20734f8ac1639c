package desensitize

import (
	"io"
	"slices"
	"sync"
)

// Hook 按添加顺序依次应用脱敏规则
type Hook struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewHook(rules ...Rule) *Hook {
	h := &Hook{}
	h.Add(rules...)
	return h
}

// Add 添加规则，同名规则会被替换
func (h *Hook) Add(rules ...Rule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rules {
		if r == nil {
			continue
		}
		if i := slices.IndexFunc(h.rules, func(x Rule) bool { return x.Name() == r.Name() }); i >= 0 {
			h.rules[i] = r
			continue
		}
		h.rules = append(h.rules, r)
	}
}

func (h *Hook) Remove(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.rules)
	h.rules = slices.DeleteFunc(h.rules, func(r Rule) bool { return r.Name() == name })
	return len(h.rules) != n
}

func (h *Hook) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}

func (h *Hook) Desensitize(s string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rules {
		s = r.Process(s)
	}
	return s
}

// Writer 在写入前脱敏
type Writer struct {
	w    io.Writer
	hook *Hook
}

func NewWriter(w io.Writer, hook *Hook) *Writer {
	return &Writer{w: w, hook: hook}
}

// Write 返回原始长度，避免 zerolog 认为写入不完整
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 || w.hook.Len() == 0 {
		return w.w.Write(p)
	}
	out := w.hook.Desensitize(string(p))
	if _, err := io.WriteString(w.w, out); err != nil {
		return 0, err
	}
	return len(p), nil
}
