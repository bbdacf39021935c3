// Package stream keeps the roster store in sync with the gateway's
// all-servers status stream.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"serverhub/internal/metrics"
	"serverhub/internal/roster"
	"serverhub/pkg/sdk"
)

const (
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Replacer receives every decoded snapshot.
type Replacer interface {
	Replace(servers []sdk.ServerInstance) error
}

type Subscriber struct {
	client  *sdk.Client
	store   Replacer
	logger  log.Logger
	metrics *metrics.Metrics

	initialBackoff time.Duration
	maxBackoff     time.Duration
	after          func(time.Duration) <-chan time.Time

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Subscriber)

func WithBackoff(initial, max time.Duration) Option {
	return func(s *Subscriber) {
		if initial > 0 {
			s.initialBackoff = initial
		}
		if max >= s.initialBackoff {
			s.maxBackoff = max
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Subscriber) { s.metrics = m }
}

func New(client *sdk.Client, store Replacer, logger log.Logger, opts ...Option) *Subscriber {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Subscriber{
		client:         client,
		store:          store,
		logger:         log.With(logger, "component", "stream"),
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		after:          time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the subscriber in the background until Close or ctx ends.
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Close tears the connection down and waits for the loop to exit.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
	})
}

// Run connects and reconnects until ctx is cancelled or the store stops.
// Delays between attempts grow exponentially and reset once a connection
// has delivered an event.
func (s *Subscriber) Run(ctx context.Context) {
	backoff := s.initialBackoff
	for {
		received, err := s.session(ctx)
		if ctx.Err() != nil {
			level.Info(s.logger).Log("msg", "status stream closed")
			return
		}
		if errors.Is(err, roster.ErrStopped) {
			level.Info(s.logger).Log("msg", "roster store stopped, leaving status stream")
			return
		}
		if received {
			backoff = s.initialBackoff
		}

		if err != nil {
			level.Warn(s.logger).Log("msg", "status stream failed", "err", err, "retry_in", backoff)
		} else {
			level.Warn(s.logger).Log("msg", "status stream ended by gateway", "retry_in", backoff)
		}
		s.metrics.Reconnect()

		select {
		case <-ctx.Done():
			level.Info(s.logger).Log("msg", "status stream closed")
			return
		case <-s.after(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

// session serves one connection. received reports whether any event
// arrived before it ended.
func (s *Subscriber) session(ctx context.Context) (received bool, err error) {
	st, err := s.client.OpenStatusStream(ctx)
	if err != nil {
		return false, err
	}
	defer st.Close()
	stop := context.AfterFunc(ctx, func() { st.Close() })
	defer stop()

	level.Info(s.logger).Log("msg", "status stream connected", "gateway", s.client.BaseURL())

	for {
		ev, ok, err := st.Next()
		if !ok {
			return received, err
		}
		received = true

		servers, dropped, err := Decode(ev.Data)
		if err != nil {
			level.Warn(s.logger).Log("msg", "dropping roster payload", "err", err)
			s.metrics.DecodeError()
			continue
		}
		for _, reason := range dropped {
			level.Warn(s.logger).Log("msg", "dropping roster entry", "reason", reason)
			s.metrics.DecodeError()
		}

		if ctx.Err() != nil {
			return received, nil
		}
		if err := s.store.Replace(servers); err != nil {
			return received, err
		}
		s.metrics.SnapshotApplied(len(servers))
		level.Debug(s.logger).Log("msg", "roster snapshot applied", "servers", len(servers))
	}
}
