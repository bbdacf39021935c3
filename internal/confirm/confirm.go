// Package confirm holds the one destructive-action confirmation that may be
// pending at a time.
package confirm

import (
	"errors"
	"sync"
)

var ErrNoPending = errors.New("no confirmation pending")

// Dialog tracks which server a confirmation targets separately from whether
// the prompt is open. Requesting a new confirmation replaces the previous
// target.
type Dialog struct {
	mu     sync.Mutex
	open   bool
	target string
}

func (d *Dialog) Request(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.target = id
	d.open = true
}

// Pending returns the target of the open prompt, if any.
func (d *Dialog) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return "", false
	}
	return d.target, true
}

// Confirm closes the prompt and returns the id it targeted.
func (d *Dialog) Confirm() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return "", ErrNoPending
	}
	id := d.target
	d.open = false
	d.target = ""
	return id, nil
}

func (d *Dialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.target = ""
}
