package dashboard

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"recstatus-dashboard/internal/platform/clock"
	"recstatus-dashboard/internal/platform/metrics"
)

// ServerLister fetches the recorder-server registry.
type ServerLister interface {
	ListServers(ctx context.Context, q ServerQuery) ([]RecServer, error)
}

// RoomSnapshotter exposes the current room snapshot. *RoomStore satisfies it.
type RoomSnapshotter interface {
	Rooms() []Room
}

// ServerStats is a server with the rooms bound to it tallied.
type ServerStats struct {
	RecServer
	TotalRooms     int `json:"totalRooms"`
	StreamingRooms int `json:"streamingRooms"`
	RecordingRooms int `json:"recordingRooms"`
}

// ServerStoreConfig configures a ServerStore.
type ServerStoreConfig struct {
	Lister ServerLister
	Rooms  RoomSnapshotter
	Clock  clock.Clock
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// ServerStore owns the recorder-server registry. Per-server statistics are
// derived on every read from the registry and the room store's snapshot.
type ServerStore struct {
	lister  ServerLister
	rooms   RoomSnapshotter
	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics

	mu          sync.RWMutex
	servers     []RecServer
	fetching    bool
	lastUpdated time.Time
	lastErr     string
}

// NewServerStore returns an empty registry.
func NewServerStore(cfg ServerStoreConfig) *ServerStore {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ServerStore{
		lister:  cfg.Lister,
		rooms:   cfg.Rooms,
		clock:   c,
		log:     log.With(slog.String("component", "server_store")),
		metrics: cfg.Metrics,
		servers: []RecServer{},
	}
}

// Refresh replaces the registry. A call while a fetch is in flight is a
// no-op; a failed fetch keeps the previous registry.
func (s *ServerStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		s.observe("throttled")
		return nil
	}
	s.fetching = true
	s.lastErr = ""
	s.mu.Unlock()

	servers, err := s.lister.ListServers(ctx, ServerQuery{})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	if err != nil {
		s.lastErr = err.Error()
		s.log.Warn("refresh servers failed",
			slog.String("kind", KindOf(err).String()),
			slog.String("error", err.Error()))
		s.observe("error")
		return err
	}
	if servers == nil {
		servers = []RecServer{}
	}
	s.servers = servers
	s.lastUpdated = s.clock.Now()
	s.observe("ok")
	return nil
}

// Servers returns the current registry snapshot.
func (s *ServerStore) Servers() []RecServer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.servers)
}

// Filtered returns servers of type t; "all" returns every server.
func (s *ServerStore) Filtered(t TypeFilter) []RecServer {
	return FilterServers(s.Servers(), t)
}

// Stats joins the registry with the current room snapshot.
func (s *ServerStore) Stats() []ServerStats {
	var rooms []Room
	if s.rooms != nil {
		rooms = s.rooms.Rooms()
	}
	return JoinServerStats(s.Servers(), rooms)
}

func (s *ServerStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetching
}

func (s *ServerStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastUpdatedText renders the last successful refresh as local wall time.
func (s *ServerStore) LastUpdatedText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUpdated.IsZero() {
		return "never"
	}
	return s.lastUpdated.Local().Format("15:04:05")
}

// FilterServers keeps servers of type t.
func FilterServers(servers []RecServer, t TypeFilter) []RecServer {
	if t == "" || t == FilterAll {
		return servers
	}
	out := make([]RecServer, 0, len(servers))
	for _, srv := range servers {
		if srv.Type == RecType(t) {
			out = append(out, srv)
		}
	}
	return out
}

// JoinServerStats tallies, for each server, the rooms whose recServer host
// matches the server host.
func JoinServerStats(servers []RecServer, rooms []Room) []ServerStats {
	byHost := make(map[string]*ServerStats, len(servers))
	out := make([]ServerStats, len(servers))
	for i, srv := range servers {
		out[i] = ServerStats{RecServer: srv}
		if _, dup := byHost[srv.Host]; !dup {
			byHost[srv.Host] = &out[i]
		}
	}
	for _, r := range rooms {
		st, ok := byHost[r.RecServer().Host]
		if !ok {
			continue
		}
		st.TotalRooms++
		if r.IsStreaming() {
			st.StreamingRooms++
		}
		if r.IsRecording() {
			st.RecordingRooms++
		}
	}
	// Servers sharing a host report the same tallies.
	for i := range out {
		if first := byHost[out[i].Host]; first != &out[i] {
			out[i].TotalRooms = first.TotalRooms
			out[i].StreamingRooms = first.StreamingRooms
			out[i].RecordingRooms = first.RecordingRooms
		}
	}
	return out
}

func (s *ServerStore) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveRefresh("servers", result)
	}
}
