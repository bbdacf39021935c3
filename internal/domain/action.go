package domain

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionDelete Action = "delete"
)

var Actions = []Action{ActionStart, ActionStop, ActionDelete}

func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// ActionRecord is one dispatched lifecycle command.
type ActionRecord struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"requestId"`
	ServerID   string     `json:"serverId"`
	Action     Action     `json:"action"`
	Outcome    Outcome    `json:"outcome"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
