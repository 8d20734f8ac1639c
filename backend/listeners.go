package backend

import (
	"sync"
)

// Listeners 认证事件订阅表，实现可内嵌复用
type Listeners struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]AuthListener
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// Add 注册回调
func (l *Listeners) Add(fn AuthListener) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]AuthListener)
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn
	return &subscription{fn: func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}}
}

// Emit 同步通知所有订阅者，回调中可以安全地取消订阅
func (l *Listeners) Emit(event Event, s *Session) {
	l.mu.RLock()
	fns := make([]AuthListener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(event, s)
	}
}

func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}
