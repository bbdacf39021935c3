// Package dispatch sends lifecycle commands to the gateway and keeps the
// busy flags and roster in step with them.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"serverhub/internal/domain"
	"serverhub/internal/metrics"
	"serverhub/internal/tracker"
	"serverhub/pkg/sdk"
)

type Gateway interface {
	StartServer(ctx context.Context, id string) error
	StopServer(ctx context.Context, id string) error
	DeleteServer(ctx context.Context, id string) error
}

// Remover applies the optimistic delete.
type Remover interface {
	RemoveByID(id string) error
}

type Dispatcher struct {
	gateway Gateway
	tracker *tracker.Tracker
	store   Remover
	journal domain.ActionRepository
	logger  log.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	notify  func()
}

type Option func(*Dispatcher)

func WithJournal(journal domain.ActionRepository) Option {
	return func(d *Dispatcher) { d.journal = journal }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTimeout bounds each gateway call. Zero leaves only the caller's
// context in charge.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithNotify registers fn to run whenever a busy flag is set or cleared.
func WithNotify(fn func()) Option {
	return func(d *Dispatcher) { d.notify = fn }
}

func New(gateway Gateway, t *tracker.Tracker, store Remover, logger log.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	d := &Dispatcher{
		gateway: gateway,
		tracker: t,
		store:   store,
		logger:  log.With(logger, "component", "dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsBusy reports whether action is in flight for id.
func (d *Dispatcher) IsBusy(id string, action domain.Action) bool {
	return d.tracker.IsBusy(id, action)
}

func (d *Dispatcher) Start(ctx context.Context, id string) error {
	return d.Dispatch(ctx, domain.ActionStart, id)
}

func (d *Dispatcher) Stop(ctx context.Context, id string) error {
	return d.Dispatch(ctx, domain.ActionStop, id)
}

// Delete removes id from the roster before asking the gateway to delete
// it. A failed call does not put the instance back; the next snapshot
// decides.
func (d *Dispatcher) Delete(ctx context.Context, id string) error {
	return d.Dispatch(ctx, domain.ActionDelete, id)
}

// Dispatch runs action against id whether or not it is already in flight.
// Front ends use Begin instead.
func (d *Dispatcher) Dispatch(ctx context.Context, action domain.Action, id string) error {
	cmd, err := d.command(id, action)
	if err != nil {
		return err
	}
	d.tracker.SetBusy(id, action, true)
	d.changed()
	return d.run(ctx, id, action, cmd)
}

// Begin claims the busy flag for action on id before returning, so a
// second Begin for the same pair reports false until the first command has
// settled. run sends the command and clears the flag; it must be called
// exactly once.
func (d *Dispatcher) Begin(id string, action domain.Action) (run func(context.Context) error, ok bool) {
	cmd, err := d.command(id, action)
	if err != nil {
		return func(context.Context) error { return err }, true
	}
	if !d.tracker.TryAcquire(id, action) {
		return nil, false
	}
	d.changed()
	return func(ctx context.Context) error {
		return d.run(ctx, id, action, cmd)
	}, true
}

type command struct {
	before func()
	call   func(context.Context, string) error
}

func (d *Dispatcher) command(id string, action domain.Action) (command, error) {
	switch action {
	case domain.ActionStart:
		return command{call: d.gateway.StartServer}, nil
	case domain.ActionStop:
		return command{call: d.gateway.StopServer}, nil
	case domain.ActionDelete:
		optimistic := func() {
			if err := d.store.RemoveByID(id); err != nil {
				level.Warn(d.logger).Log("msg", "optimistic remove failed", "server_id", id, "err", err)
			}
		}
		return command{before: optimistic, call: d.gateway.DeleteServer}, nil
	default:
		return command{}, fmt.Errorf("unknown action %q", action)
	}
}

// run expects the busy flag to be set already and clears it on return.
func (d *Dispatcher) run(ctx context.Context, id string, action domain.Action, cmd command) error {
	defer func() {
		d.tracker.SetBusy(id, action, false)
		d.changed()
	}()

	requestID := uuid.New().String()
	ctx = sdk.WithRequestID(ctx, requestID)
	logger := log.With(d.logger, "server_id", id, "action", action, "request_id", requestID)

	recordID := d.recordStart(logger, id, action, requestID)

	if cmd.before != nil {
		cmd.before()
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	started := time.Now()
	err := cmd.call(ctx, id)
	took := time.Since(started)

	outcome := domain.OutcomeSucceeded
	if err != nil {
		outcome = domain.OutcomeFailed
		err = fmt.Errorf("%s server %s: %w", action, id, err)
		level.Error(logger).Log("msg", "command failed", "err", err, "took", took)
	} else {
		level.Info(logger).Log("msg", "command succeeded", "took", took)
	}

	d.metrics.CommandDone(action, outcome, took)
	d.recordFinish(logger, recordID, outcome, err)
	return err
}

func (d *Dispatcher) changed() {
	if d.notify != nil {
		d.notify()
	}
}

func (d *Dispatcher) recordStart(logger log.Logger, id string, action domain.Action, requestID string) string {
	if d.journal == nil {
		return ""
	}
	rec := &domain.ActionRecord{
		ID:        uuid.New().String(),
		RequestID: requestID,
		ServerID:  id,
		Action:    action,
		Outcome:   domain.OutcomePending,
		StartedAt: time.Now(),
	}
	if err := d.journal.SaveAction(rec); err != nil {
		level.Warn(logger).Log("msg", "could not journal command", "err", err)
		return ""
	}
	return rec.ID
}

func (d *Dispatcher) recordFinish(logger log.Logger, recordID string, outcome domain.Outcome, cmdErr error) {
	if d.journal == nil || recordID == "" {
		return
	}
	errText := ""
	if cmdErr != nil {
		errText = cmdErr.Error()
	}
	if err := d.journal.FinishAction(recordID, outcome, errText); err != nil {
		level.Warn(logger).Log("msg", "could not journal command result", "err", err)
	}
}
