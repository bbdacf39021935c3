// Package tracker records which lifecycle commands are in flight for each
// server instance.
package tracker

import (
	"sync"

	"serverhub/internal/domain"
)

type key struct {
	serverID string
	action   domain.Action
}

// Tracker is a set of (server id, action) pairs currently in flight. A
// missing entry and a cleared entry are the same thing.
type Tracker struct {
	mu   sync.RWMutex
	busy map[key]struct{}
}

func New() *Tracker {
	return &Tracker{busy: make(map[key]struct{})}
}

// SetBusy marks or clears the flag. Marking an already busy pair is a no-op.
func (t *Tracker) SetBusy(serverID string, action domain.Action, busy bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{serverID: serverID, action: action}
	if busy {
		t.busy[k] = struct{}{}
		return
	}
	delete(t.busy, k)
}

// TryAcquire marks the pair busy and reports true, or reports false and
// changes nothing when it is already busy.
func (t *Tracker) TryAcquire(serverID string, action domain.Action) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{serverID: serverID, action: action}
	if _, busy := t.busy[k]; busy {
		return false
	}
	t.busy[k] = struct{}{}
	return true
}

func (t *Tracker) IsBusy(serverID string, action domain.Action) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.busy[key{serverID: serverID, action: action}]
	return ok
}
