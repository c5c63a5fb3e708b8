package executor

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// LocalLocks is a process-local domain.LockManager for single-instance runs.
// Acquire blocks until the key is free or ctx ends; ttl is ignored.
type LocalLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewLocalLocks creates an empty lock set.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{held: make(map[string]chan struct{})}
}

func (l *LocalLocks) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		wait, busy := l.held[key]
		if !busy {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(done)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

var _ domain.LockManager = (*LocalLocks)(nil)
