package scheduler

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/rentoso/errors"
	"github.com/kochabx/rentoso/log"
)

// Pool 固定大小的协程池，用于一次性的批量任务
type Pool struct {
	pool   *ants.Pool
	logger *log.Logger
}

// NewPool size 不大于 0 时使用 4
func NewPool(size int, logger *log.Logger) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = log.G
	}
	p, err := ants.NewPool(size, ants.WithPreAlloc(true), ants.WithPanicHandler(func(v any) {
		logger.Error().Interface("panic", v).Msg("pool task panicked")
	}))
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p, logger: logger}, nil
}

// Run 并发执行全部任务并等待结束，返回合并后的错误
func (p *Pool) Run(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, task := range tasks {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := task(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release 释放协程池，之后提交的任务返回 ants.ErrPoolClosed
func (p *Pool) Release() {
	p.pool.Release()
}
