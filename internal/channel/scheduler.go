package channel

import (
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Scheduler runs a continuation once a delay has elapsed. Dispatch stages are
// chained through it so no goroutine is parked for the humanization delay.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// PoolScheduler fires timers and runs continuations on a bounded worker pool.
type PoolScheduler struct {
	pool *ants.Pool
}

func NewPoolScheduler(workers int) (*PoolScheduler, error) {
	if workers <= 0 {
		workers = 16
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		zap.S().Errorf("channel: dispatch worker panic: %v", p)
	}))
	if err != nil {
		return nil, err
	}
	return &PoolScheduler{pool: pool}, nil
}

func (s *PoolScheduler) After(d time.Duration, fn func()) {
	if d <= 0 {
		s.submit(fn)
		return
	}
	time.AfterFunc(d, func() { s.submit(fn) })
}

func (s *PoolScheduler) submit(fn func()) {
	if err := s.pool.Submit(fn); err != nil {
		// pool closed or saturated; the continuation must still run
		zap.L().Warn("channel: worker pool rejected task, running detached", zap.Error(err))
		go fn()
	}
}

// Release stops the pool. Pending timers still fire and run detached.
func (s *PoolScheduler) Release() {
	s.pool.Release()
}
