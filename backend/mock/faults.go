package mock

import (
	"sync"
)

// Faults 让后续调用按次数失败
type Faults struct {
	mu          sync.Mutex
	getSession  fault
	refresh     fault
	signOut     fault
	selectTable map[string]*fault
}

type fault struct {
	remaining int
	err       error
}

// take 剩余次数为负表示一直失败
func (f *fault) take() error {
	if f.err == nil || f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// FailGetSession 之后 n 次 GetSession 返回 err，n<0 表示一直失败
func (f *Faults) FailGetSession(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getSession = fault{remaining: n, err: err}
}

func (f *Faults) FailRefresh(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = fault{remaining: n, err: err}
}

func (f *Faults) FailSignOut(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOut = fault{remaining: n, err: err}
}

// FailSelect 针对单张表的查询失败
func (f *Faults) FailSelect(table string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selectTable == nil {
		f.selectTable = make(map[string]*fault)
	}
	f.selectTable[table] = &fault{remaining: n, err: err}
}

// Reset 清除所有故障
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getSession, f.refresh, f.signOut = fault{}, fault{}, fault{}
	f.selectTable = nil
}

func (f *Faults) takeGetSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSession.take()
}

func (f *Faults) takeRefresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh.take()
}

func (f *Faults) takeSignOut() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOut.take()
}

func (f *Faults) takeSelect(table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ft, ok := f.selectTable[table]; ok {
		return ft.take()
	}
	return nil
}
