// Package view turns the roster, busy flags and pending confirmation into
// the rows both front ends render.
package view

import (
	"fmt"

	"serverhub/internal/domain"
	"serverhub/internal/roster"
	"serverhub/pkg/sdk"
)

type Busy struct {
	Start  bool `json:"start"`
	Stop   bool `json:"stop"`
	Delete bool `json:"delete"`
}

func (b Busy) Any() bool {
	return b.Start || b.Stop || b.Delete
}

type Row struct {
	Server    sdk.ServerInstance `json:"server"`
	Busy      Busy               `json:"busy"`
	CanStart  bool               `json:"canStart"`
	CanStop   bool               `json:"canStop"`
	CanDelete bool               `json:"canDelete"`
}

type Roster struct {
	Version       uint64 `json:"version"`
	Rows          []Row  `json:"rows"`
	PendingDelete string `json:"pendingDelete,omitempty"`
}

// BusyChecker is satisfied by the tracker and the dispatcher.
type BusyChecker interface {
	IsBusy(id string, action domain.Action) bool
}

type PendingChecker interface {
	Pending() (string, bool)
}

func Build(snap roster.Snapshot, busy BusyChecker, pending PendingChecker) Roster {
	out := Roster{
		Version: snap.Version,
		Rows:    make([]Row, 0, len(snap.Servers)),
	}
	for _, s := range snap.Servers {
		out.Rows = append(out.Rows, NewRow(s, busy))
	}
	if pending != nil {
		if id, ok := pending.Pending(); ok {
			out.PendingDelete = id
		}
	}
	return out
}

func NewRow(s sdk.ServerInstance, busy BusyChecker) Row {
	b := Busy{
		Start:  busy.IsBusy(s.ID, domain.ActionStart),
		Stop:   busy.IsBusy(s.ID, domain.ActionStop),
		Delete: busy.IsBusy(s.ID, domain.ActionDelete),
	}
	return Row{
		Server:    s,
		Busy:      b,
		CanStart:  !b.Start && Allowed(s, domain.ActionStart),
		CanStop:   !b.Stop && Allowed(s, domain.ActionStop),
		CanDelete: !b.Delete && Allowed(s, domain.ActionDelete),
	}
}

// Allowed applies the status rules: a running server cannot be started or
// deleted and a stopped one cannot be stopped.
func Allowed(s sdk.ServerInstance, action domain.Action) bool {
	switch action {
	case domain.ActionStart, domain.ActionDelete:
		return !s.Status.Is(sdk.StatusRunning)
	case domain.ActionStop:
		return !s.Status.Is(sdk.StatusStopped)
	default:
		return false
	}
}

func (r Row) Can(action domain.Action) bool {
	switch action {
	case domain.ActionStart:
		return r.CanStart
	case domain.ActionStop:
		return r.CanStop
	case domain.ActionDelete:
		return r.CanDelete
	default:
		return false
	}
}

func FormatPlayers(p *sdk.Players) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", p.Online, p.Max)
}
