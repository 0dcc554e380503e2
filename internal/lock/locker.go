// Package lock serialises writers per key, either in-process or through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrLockTimeout = errors.New("lock_timeout")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

// Locker grants exclusive access to a key. Acquire never blocks longer than
// the locker's wait bound or the context deadline, whichever comes first.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is a keyed mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		slots: make(map[string]*slot),
		wait:  wait,
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if key == "" {
		return nil, errors.New("lock key is empty")
	}

	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case s.ch <- struct{}{}:
	case <-waitCtx.Done():
		l.unref(key, s)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// InvoiceKey is the lock key guarding writes to one invoice.
func InvoiceKey(id fmt.Stringer) string {
	return "schoolride:lock:invoice:" + id.String()
}

// SalaryKey is the lock key guarding writes to one salary.
func SalaryKey(id fmt.Stringer) string {
	return "schoolride:lock:salary:" + id.String()
}

// WithKey runs fn while holding key. If fn fails with conflict it runs once
// more under the same lock and that result is returned. onConflict, when set,
// is called before the second run.
func WithKey(ctx context.Context, l Locker, key string, conflict error, onConflict func(), fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	defer release()

	err = fn(ctx)
	if conflict == nil || !errors.Is(err, conflict) {
		return err
	}
	if onConflict != nil {
		onConflict()
	}
	return fn(ctx)
}
