// Package roster holds the last known set of server instances.
//
// All writes go through a single loop goroutine (Run) so a stream snapshot
// and an optimistic delete can never interleave; whichever reaches the loop
// first is applied first. Readers get copies and never see a partial write.
package roster

import (
	"errors"
	"sync"

	"serverhub/pkg/sdk"
)

var ErrStopped = errors.New("roster store stopped")

// Snapshot is the roster after the Version-th applied event.
type Snapshot struct {
	Version uint64
	Servers []sdk.ServerInstance
}

type request struct {
	event Event
	done  chan struct{}
}

type watcher struct {
	ch chan Snapshot
}

type Store struct {
	events   chan request
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	current  Snapshot
	watchers map[*watcher]struct{}
}

func NewStore() *Store {
	return &Store{
		events:   make(chan request),
		stop:     make(chan struct{}),
		current:  Snapshot{Servers: []sdk.ServerInstance{}},
		watchers: make(map[*watcher]struct{}),
	}
}

// Run applies submitted events until Stop is called.
func (s *Store) Run() {
	for {
		select {
		case req := <-s.events:
			s.apply(req.event)
			close(req.done)
		case <-s.stop:
			s.mu.Lock()
			for w := range s.watchers {
				close(w.ch)
				delete(s.watchers, w)
			}
			s.mu.Unlock()
			return
		}
	}
}

func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Replace overwrites the roster with servers. It returns after the
// replacement is visible to readers.
func (s *Store) Replace(servers []sdk.ServerInstance) error {
	return s.submit(SnapshotReceived{Servers: servers})
}

// RemoveByID drops id from the roster. It returns after the removal is
// visible to readers.
func (s *Store) RemoveByID(id string) error {
	return s.submit(OptimisticRemove{ID: id})
}

func (s *Store) submit(ev Event) error {
	req := request{event: ev, done: make(chan struct{})}
	select {
	case s.events <- req:
	case <-s.stop:
		return ErrStopped
	}
	<-req.done
	return nil
}

func (s *Store) apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Snapshot{
		Version: s.current.Version + 1,
		Servers: Reduce(s.current.Servers, ev),
	}
	for w := range s.watchers {
		offer(w.ch, s.copyCurrent())
	}
}

// Servers returns a copy of the roster in stream order.
func (s *Store) Servers() []sdk.ServerInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current.Servers)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyCurrent()
}

func (s *Store) Get(id string) (sdk.ServerInstance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, srv := range s.current.Servers {
		if srv.ID == id {
			return clone([]sdk.ServerInstance{srv})[0], true
		}
	}
	return sdk.ServerInstance{}, false
}

// Watch delivers the current snapshot immediately and then the latest
// snapshot after every applied event. Slow readers only ever see the newest
// snapshot. The channel is closed by cancel or when the store stops.
func (s *Store) Watch() (<-chan Snapshot, func()) {
	w := &watcher{ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	select {
	case <-s.stop:
		close(w.ch)
		s.mu.Unlock()
		return w.ch, func() {}
	default:
	}
	s.watchers[w] = struct{}{}
	offer(w.ch, s.copyCurrent())
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[w]; ok {
				delete(s.watchers, w)
				close(w.ch)
			}
		})
	}
	return w.ch, cancel
}

func (s *Store) copyCurrent() Snapshot {
	return Snapshot{Version: s.current.Version, Servers: clone(s.current.Servers)}
}

// offer replaces any undelivered snapshot with snap. Callers hold s.mu.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
