// Package app wires the roster pipeline, command dispatch and persistence
// into one container shared by the dashboard and the web backend.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"serverhub/internal/config"
	"serverhub/internal/confirm"
	"serverhub/internal/dispatch"
	"serverhub/internal/metrics"
	"serverhub/internal/roster"
	"serverhub/internal/server"
	"serverhub/internal/storage"
	"serverhub/internal/stream"
	"serverhub/internal/tracker"
	"serverhub/internal/view"
	"serverhub/internal/ws"
	"serverhub/pkg/sdk"
)

type Container struct {
	Config     *config.Config
	Logger     log.Logger
	Client     *sdk.Client
	Store      *roster.Store
	Tracker    *tracker.Tracker
	Dispatcher *dispatch.Dispatcher
	Subscriber *stream.Subscriber
	Journal    *storage.GormStore
	Servers    *server.Manager
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Confirm    *confirm.Dialog

	// Hub is nil unless the container serves websocket clients.
	Hub *ws.Hub

	// publishMu orders view snapshots with their delivery to the hub.
	publishMu sync.Mutex

	stopWatch func()
	watchDone chan struct{}
	storeOnce sync.Once
	closeOnce sync.Once
}

type Option func(*Container)

func WithHub() Option {
	return func(c *Container) { c.Hub = ws.NewHub(log.With(c.Logger, "component", "ws")) }
}

func New(cfg *config.Config, logger log.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	journal, err := storage.NewGormStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", cfg.DatabasePath, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Container{
		Config:   cfg,
		Logger:   logger,
		Client:   sdk.NewClient(cfg.GatewayURL),
		Store:    roster.NewStore(),
		Tracker:  tracker.New(),
		Journal:  journal,
		Metrics:  metrics.New(reg),
		Registry: reg,
		Confirm:  &confirm.Dialog{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Dispatcher = dispatch.New(c.Client, c.Tracker, c.Store, logger,
		dispatch.WithJournal(journal),
		dispatch.WithMetrics(c.Metrics),
		dispatch.WithTimeout(cfg.CommandTimeout()),
		dispatch.WithNotify(c.Publish),
	)
	c.Subscriber = stream.New(c.Client, c.Store, logger,
		stream.WithBackoff(cfg.ReconnectInitial(), cfg.ReconnectMax()),
		stream.WithMetrics(c.Metrics),
	)
	c.Servers = server.NewManager(c.Client, journal, c.Store, log.With(logger, "component", "create"))

	return c, nil
}

// Start launches the store loop, the stream subscriber and, when present,
// the websocket hub.
func (c *Container) Start(ctx context.Context) {
	c.StartStore()
	if c.Hub != nil {
		go c.Hub.Run()
	}

	updates, stop := c.Store.Watch()
	c.stopWatch = stop
	c.watchDone = make(chan struct{})
	go func() {
		defer close(c.watchDone)
		for snap := range updates {
			c.Metrics.RosterSize(len(snap.Servers))
			c.Publish()
		}
	}()

	c.Subscriber.Start(ctx)
	level.Info(c.Logger).Log("msg", "container started", "gateway", c.Client.BaseURL())
}

// StartStore runs only the roster loop. One-shot commands use it so that
// dispatch can apply optimistic removals without a live stream.
func (c *Container) StartStore() {
	c.storeOnce.Do(func() { go c.Store.Run() })
}

// View is the current roster with busy flags and the pending confirmation.
func (c *Container) View() view.Roster {
	return view.Build(c.Store.Snapshot(), c.Tracker, c.Confirm)
}

// Publish pushes the current view to websocket clients. Concurrent calls
// reach the hub in the order their views were built.
func (c *Container) Publish() {
	if c.Hub == nil {
		return
	}
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	data, err := json.Marshal(c.View())
	if err != nil {
		level.Error(c.Logger).Log("msg", "encode roster view", "err", err)
		return
	}
	c.Hub.Broadcast(data)
}

func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.Subscriber.Close()
		c.Store.Stop()
		if c.watchDone != nil {
			<-c.watchDone
			c.stopWatch()
		}
		if c.Hub != nil {
			c.Hub.Stop()
		}
		err = c.Journal.Close()
	})
	return err
}
