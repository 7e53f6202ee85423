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

// DefaultRefreshThrottle is the minimum spacing between refresh starts.
const DefaultRefreshThrottle = 5 * time.Second

// RoomLister fetches the heterogeneous room collection.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]Room, error)
}

// RoomStoreConfig configures a RoomStore.
type RoomStoreConfig struct {
	Lister RoomLister
	// Clock defaults to clock.Real().
	Clock clock.Clock
	// Throttle defaults to DefaultRefreshThrottle.
	Throttle time.Duration
	Logger   *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// RoomStore owns the room collection. The collection is only replaced
// wholesale by Refresh (or emptied by Reset); readers always get a complete
// snapshot.
type RoomStore struct {
	lister   RoomLister
	clock    clock.Clock
	throttle time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	rooms       []Room
	fetching    bool
	lastFetch   time.Time
	lastUpdated time.Time
	lastErr     string
	generation  uint64
	filter      RoomFilter
}

// NewRoomStore returns an empty store.
func NewRoomStore(cfg RoomStoreConfig) *RoomStore {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = DefaultRefreshThrottle
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &RoomStore{
		lister:   cfg.Lister,
		clock:    c,
		throttle: throttle,
		log:      log.With(slog.String("component", "room_store")),
		metrics:  cfg.Metrics,
		rooms:    []Room{},
		filter:   RoomFilter{Type: FilterAll, Status: StatusAll},
	}
}

// Refresh fetches the room list and replaces the collection. A call made
// while a fetch is in flight, or within the throttle window of the previous
// fetch start, returns nil without fetching. On failure the previous
// collection is kept and the error is recorded and returned. Records that
// match neither backend layout are dropped and reported through LastError.
func (s *RoomStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	now := s.clock.Now()
	if s.fetching || (!s.lastFetch.IsZero() && now.Sub(s.lastFetch) < s.throttle) {
		s.mu.Unlock()
		s.observe("throttled")
		return nil
	}
	s.fetching = true
	s.lastFetch = now
	s.lastErr = ""
	gen := s.generation
	s.mu.Unlock()

	rooms, err := s.lister.ListRooms(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false

	// Unrecognized records are skipped: the rest still replace the
	// collection and the error stays visible through LastError.
	partial := err != nil && rooms != nil && KindOf(err) == KindUnknownSchema
	if err != nil && !partial {
		s.lastErr = err.Error()
		s.log.Warn("refresh rooms failed",
			slog.String("kind", KindOf(err).String()),
			slog.String("error", err.Error()))
		s.observe("error")
		return err
	}
	if gen != s.generation {
		s.log.Debug("discarding room list fetched before session reset")
		s.observe("discarded")
		return nil
	}
	if rooms == nil {
		rooms = []Room{}
	}
	s.rooms = rooms
	s.lastUpdated = s.clock.Now()
	if partial {
		s.lastErr = err.Error()
		s.log.Warn("skipped unrecognized room records",
			slog.Int("kept", len(rooms)),
			slog.String("error", err.Error()))
		s.observe("partial")
		return nil
	}
	s.log.Debug("rooms refreshed", slog.Int("count", len(rooms)))
	s.observe("ok")
	return nil
}

// Reset empties the collection and the throttle window. Used when the
// session is invalidated; an in-flight fetch started before Reset is
// discarded.
func (s *RoomStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.rooms = []Room{}
	s.lastFetch = time.Time{}
	s.lastUpdated = time.Time{}
	s.lastErr = ""
}

// Rooms returns the current snapshot in server order.
func (s *RoomStore) Rooms() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rooms)
}

// Loading reports whether a fetch is in flight.
func (s *RoomStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetching
}

// LastError is the message of the last failed refresh, cleared when the
// next refresh starts.
func (s *RoomStore) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// LastUpdated is the completion time of the last successful refresh.
func (s *RoomStore) LastUpdated() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated, !s.lastUpdated.IsZero()
}

// LastUpdatedText humanizes LastUpdated against the store's clock.
func (s *RoomStore) LastUpdatedText() string {
	last, _ := s.LastUpdated()
	return HumanizeSince(last, s.clock.Now())
}

// Filter returns the current view selection.
func (s *RoomStore) Filter() RoomFilter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetFilter replaces the view selection.
func (s *RoomStore) SetFilter(f RoomFilter) {
	if f.Type == "" {
		f.Type = FilterAll
	}
	if f.Status == "" {
		f.Status = StatusAll
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
}

func (s *RoomStore) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Query = q
}

func (s *RoomStore) SetFilterType(t TypeFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Type = t
}

func (s *RoomStore) SetFilterStatus(st StatusFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.Status = st
}

// FilteredRooms applies the current filter to the current snapshot.
func (s *RoomStore) FilteredRooms() []Room {
	s.mu.RLock()
	rooms, f := s.rooms, s.filter
	s.mu.RUnlock()
	return slices.Clone(FilterRooms(rooms, f))
}

// Counts tallies the current snapshot.
func (s *RoomStore) Counts() RoomCounts {
	s.mu.RLock()
	rooms := s.rooms
	s.mu.RUnlock()
	return CountRooms(rooms)
}

// ServerHosts lists the distinct recorder hosts of type t seen in the snapshot.
func (s *RoomStore) ServerHosts(t RecType) []string {
	s.mu.RLock()
	rooms := s.rooms
	s.mu.RUnlock()
	return DistinctHosts(rooms, t)
}

func (s *RoomStore) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveRefresh("rooms", result)
	}
}
