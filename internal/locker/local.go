package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hackgods/healing-scheduler/internal/scheduling"
)

// Local is an in-process scheduling.Locker. Each staff member gets a one-slot channel
// used as a mutex so waiting can be bounded by ctx and wait.
type Local struct {
	mu    sync.Mutex
	slots map[int64]*entry
	wait  time.Duration
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewLocal returns a locker whose callers give up after wait. wait <= 0 means wait until ctx is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{
		slots: make(map[int64]*entry),
		wait:  wait,
	}
}

func (l *Local) WithStaffLock(ctx context.Context, staffID int64, fn func(ctx context.Context) error) error {
	e := l.acquireEntry(staffID)
	defer l.releaseEntry(staffID)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("acquire staff lock: %w", ctx.Err())
		}
		return scheduling.ErrLockNotAcquired
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *Local) acquireEntry(staffID int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.slots[staffID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.slots[staffID] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseEntry(staffID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.slots[staffID]
	e.refs--
	if e.refs == 0 {
		delete(l.slots, staffID)
	}
}
