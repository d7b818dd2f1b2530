package service

import (
	"context"
	"sync"
	"time"
)

// electionLocks serializes ledger writes per election inside this process.
// Entries are dropped once nobody holds or waits for them.
type electionLocks struct {
	mu   sync.Mutex
	held map[string]*electionLock
}

type electionLock struct {
	sem  chan struct{}
	refs int
}

func newElectionLocks() *electionLocks {
	return &electionLocks{held: make(map[string]*electionLock)}
}

// acquire blocks until the election lock is held or ctx is done.
func (l *electionLocks) acquire(ctx context.Context, electionID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.held[electionID]
	if !ok {
		lk = &electionLock{sem: make(chan struct{}, 1)}
		l.held[electionID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(electionID, lk)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.unref(electionID, lk)
		})
	}, nil
}

func (l *electionLocks) unref(electionID string, lk *electionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.held, electionID)
	}
}

func (l *electionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// sequencer hands out strictly increasing sequence numbers close to the
// wall clock in nanoseconds.
type sequencer struct {
	mu   sync.Mutex
	last int64
}

func (q *sequencer) next(now time.Time) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := now.UnixNano()
	if n <= q.last {
		n = q.last + 1
	}
	q.last = n
	return n
}
