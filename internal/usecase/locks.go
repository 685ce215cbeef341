// Package usecase implements the trajectory protocol: breadcrumb chain
// maintenance, epoch publication, trust scoring and the handle claim
// workflow.
package usecase

import (
	"sync"
	"time"
)

type Clock func() time.Time

// IdentityLocks serializes chain-mutating work per identity. Append and
// epoch publication both read the chain head (or the unpublished set)
// and then write, so each identity's chain has exactly one writer at a
// time. Readers never take these locks.
type IdentityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIdentityLocks() *IdentityLocks {
	return &IdentityLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *IdentityLocks) ForIdentity(identityID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[identityID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[identityID] = lock
	}
	return lock
}
