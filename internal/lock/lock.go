package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrTimeout = errors.New("lock: wait timed out")

// DefaultWait applies when a non-positive wait is configured.
const DefaultWait = 3 * time.Second

// Locker hands out exclusive ownership of a key. Acquire waits a bounded time and
// returns ErrTimeout instead of blocking forever. release is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local serializes callers within one process using a semaphore per key.
type Local struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{wait: wait, slots: make(map[string]*slot)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	t := time.NewTimer(l.wait)
	defer t.Stop()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.unref(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	case <-t.C:
		l.unref(key, s)
		return nil, ErrTimeout
	}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports the number of keys with waiters or owners.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
