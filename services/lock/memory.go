// Package locksvc holds the teacher/date lockers serializing competing session bookings.
package locksvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/session"
)

// MemoryLocker serializes holders of the same keys within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ session.Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*slot)}
}

func (l *MemoryLocker) ref(key string) *slot {
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

func (l *MemoryLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.slots[key]; ok {
		if s.refs--; s.refs == 0 {
			delete(l.slots, key)
		}
	}
}

// Acquire takes keys in the given order; callers pass them sorted.
func (l *MemoryLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	held := make([]string, 0, len(keys))
	slots := make([]*slot, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-slots[i].ch
			l.unref(held[i])
		}
		held, slots = held[:0], slots[:0]
	}

	for _, k := range keys {
		s := l.ref(k)
		select {
		case s.ch <- struct{}{}:
			held = append(held, k)
			slots = append(slots, s)
		case <-ctx.Done():
			l.unref(k)
			release()
			return nil, errors.Wrapf(ctx.Err(), "waiting for %s", k)
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}
