package services

import (
	"context"
	"sync"
)

// AccountLocker serialises work per account. Locks are created on demand
// and dropped once nobody holds or waits for them.
type AccountLocker struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	sem  chan struct{}
	refs int
}

func NewAccountLocker() *AccountLocker {
	return &AccountLocker{locks: make(map[string]*accountLock)}
}

// Lock blocks until the account is free or ctx is done. The returned
// function releases the lock and is safe to call more than once.
func (l *AccountLocker) Lock(ctx context.Context, accountID string) (func(), error) {
	lk := l.ref(accountID)

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(accountID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.sem
			l.unref(accountID, lk)
		})
	}, nil
}

// LockPair locks two accounts in id order so that opposite transfers
// cannot deadlock.
func (l *AccountLocker) LockPair(ctx context.Context, a, b string) (func(), error) {
	if a == b {
		return l.Lock(ctx, a)
	}
	if b < a {
		a, b = b, a
	}

	unlockA, err := l.Lock(ctx, a)
	if err != nil {
		return nil, err
	}
	unlockB, err := l.Lock(ctx, b)
	if err != nil {
		unlockA()
		return nil, err
	}
	return func() {
		unlockB()
		unlockA()
	}, nil
}

func (l *AccountLocker) ref(accountID string) *accountLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[accountID]
	if !ok {
		lk = &accountLock{sem: make(chan struct{}, 1)}
		l.locks[accountID] = lk
	}
	lk.refs++
	return lk
}

func (l *AccountLocker) unref(accountID string, lk *accountLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, accountID)
	}
}

func (l *AccountLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
