package roster

import "serverhub/pkg/sdk"

// Event is a roster mutation. Events are applied strictly in the order the
// store receives them.
type Event interface {
	isEvent()
}

// SnapshotReceived replaces the whole roster with a stream payload.
type SnapshotReceived struct {
	Servers []sdk.ServerInstance
}

// OptimisticRemove drops one instance ahead of the gateway confirming a
// delete. A later snapshot that still lists the instance brings it back.
type OptimisticRemove struct {
	ID string
}

func (SnapshotReceived) isEvent() {}
func (OptimisticRemove) isEvent() {}

// Reduce returns the roster after applying ev to current. current is never
// modified.
func Reduce(current []sdk.ServerInstance, ev Event) []sdk.ServerInstance {
	switch e := ev.(type) {
	case SnapshotReceived:
		return clone(e.Servers)
	case OptimisticRemove:
		next := make([]sdk.ServerInstance, 0, len(current))
		for _, s := range current {
			if s.ID != e.ID {
				next = append(next, s)
			}
		}
		return next
	default:
		return current
	}
}

func clone(servers []sdk.ServerInstance) []sdk.ServerInstance {
	out := make([]sdk.ServerInstance, len(servers))
	for i, s := range servers {
		if s.Players != nil {
			p := *s.Players
			s.Players = &p
		}
		out[i] = s
	}
	return out
}
