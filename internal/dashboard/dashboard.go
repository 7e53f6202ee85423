package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"recstatus-dashboard/internal/platform/clock"
	"recstatus-dashboard/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// Services are the collaborators owned outside the core. They are built
// once by the caller and handed to New; nothing in this package constructs
// them lazily.
type Services struct {
	Notifier Notifier
	Store    KeyValueStore
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient HTTPDoer
	Logger     *slog.Logger
	Clock      clock.Clock
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Config tunes the core.
type Config struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RefreshThrottle time.Duration
	RefreshInterval time.Duration
	AutoRefresh     bool
}

// Dashboard wires the request client, the session, both stores, the
// mutation service and the refresh schedulers.
type Dashboard struct {
	Client     *Client
	Session    *Session
	Rooms      *RoomStore
	Servers    *ServerStore
	Service    *Service
	Visibility *Visibility

	autoRefresh bool
	schedulers  []*Scheduler
	log         *slog.Logger
}

// New builds a Dashboard. Nothing touches the network until Init.
func New(cfg Config, svc Services) (*Dashboard, error) {
	log := svc.Logger
	if log == nil {
		log = slog.Default()
	}
	c := svc.Clock
	if c == nil {
		c = clock.Real()
	}
	httpClient := svc.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client, err := NewClient(ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: httpClient,
		Store:      svc.Store,
		Timeout:    cfg.RequestTimeout,
		Logger:     log,
		Metrics:    svc.Metrics,
	})
	if err != nil {
		return nil, err
	}

	rooms := NewRoomStore(RoomStoreConfig{
		Lister:   client,
		Clock:    c,
		Throttle: cfg.RefreshThrottle,
		Logger:   log,
		Metrics:  svc.Metrics,
	})
	servers := NewServerStore(ServerStoreConfig{
		Lister:  client,
		Rooms:   rooms,
		Clock:   c,
		Logger:  log,
		Metrics: svc.Metrics,
	})
	session := NewSession(client, svc.Store, svc.Notifier, log)
	session.OnReset(rooms.Reset)

	vis := NewVisibility(true)
	d := &Dashboard{
		Client:      client,
		Session:     session,
		Rooms:       rooms,
		Servers:     servers,
		Service:     NewService(client, rooms, servers, svc.Notifier, log),
		Visibility:  vis,
		autoRefresh: cfg.AutoRefresh,
		log:         log,
	}
	d.schedulers = []*Scheduler{
		NewScheduler(SchedulerConfig{
			Name: "rooms", Refresh: rooms.Refresh, Interval: cfg.RefreshInterval,
			Visibility: vis, Clock: c, Logger: log,
		}),
		NewScheduler(SchedulerConfig{
			Name: "servers", Refresh: servers.Refresh, Interval: cfg.RefreshInterval,
			Visibility: vis, Clock: c, Logger: log,
		}),
	}
	return d, nil
}

// Init probes the auth status, loads rooms and servers concurrently and,
// when auto refresh is enabled, starts the schedulers. Load failures are
// recorded by the stores and returned, but schedulers start regardless so
// the dashboard recovers on its own.
func (d *Dashboard) Init(ctx context.Context) error {
	if _, err := d.Session.CheckStatus(ctx); err != nil {
		d.log.Warn("auth status probe failed", slog.String("error", err.Error()))
	}

	// The loads are independent: one failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error { return d.Rooms.Refresh(ctx) })
	g.Go(func() error { return d.Servers.Refresh(ctx) })
	err := g.Wait()

	if d.autoRefresh {
		d.StartAutoRefresh(ctx)
	}
	return err
}

// StartAutoRefresh (re)starts both schedulers.
func (d *Dashboard) StartAutoRefresh(ctx context.Context) {
	for _, s := range d.schedulers {
		s.Start(ctx)
	}
}

// StopAutoRefresh stops both schedulers.
func (d *Dashboard) StopAutoRefresh() {
	for _, s := range d.schedulers {
		s.Stop()
	}
}

// AutoRefreshRunning reports whether the schedulers are running.
func (d *Dashboard) AutoRefreshRunning() bool {
	for _, s := range d.schedulers {
		if !s.Running() {
			return false
		}
	}
	return len(d.schedulers) > 0
}

// Close stops background work.
func (d *Dashboard) Close() {
	d.StopAutoRefresh()
}
