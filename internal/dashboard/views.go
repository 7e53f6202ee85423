package dashboard

import (
	"strconv"
	"strings"
)

// FilterAll disables a type or status filter.
const FilterAll = "all"

// TypeFilter selects rooms or servers by backend: "all", "recheme" or "blrec".
type TypeFilter string

// StatusFilter selects rooms by state: "all", "streaming" or "recording".
type StatusFilter string

const (
	StatusAll       StatusFilter = FilterAll
	StatusStreaming StatusFilter = "streaming"
	StatusRecording StatusFilter = "recording"
)

// ParseTypeFilter accepts "", "all" or a RecType.
func ParseTypeFilter(s string) (TypeFilter, error) {
	if s == "" || s == FilterAll {
		return FilterAll, nil
	}
	if !RecType(s).Valid() {
		return "", validationError("type filter must be all, recheme or blrec, got %q", s)
	}
	return TypeFilter(s), nil
}

// ParseStatusFilter accepts "", "all", "streaming" or "recording".
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusStreaming, StatusRecording:
		return StatusFilter(s), nil
	}
	return "", validationError("status filter must be all, streaming or recording, got %q", s)
}

// RoomFilter is the dashboard's current view selection.
type RoomFilter struct {
	Type   TypeFilter   `json:"type"`
	Status StatusFilter `json:"status"`
	Query  string       `json:"query"`
}

// FilterRooms applies type, then status, then search; each stage sees only
// the previous stage's output.
func FilterRooms(rooms []Room, f RoomFilter) []Room {
	out := FilterByType(rooms, f.Type)
	out = FilterByStatus(out, f.Status)
	return SearchRooms(out, f.Query)
}

// FilterByType keeps rooms bound to recorders of type t.
func FilterByType(rooms []Room, t TypeFilter) []Room {
	if t == "" || t == FilterAll {
		return rooms
	}
	return keep(rooms, func(r Room) bool { return r.Type() == RecType(t) })
}

// FilterByStatus keeps streaming or recording rooms. The state is read
// through the accessors on every call.
func FilterByStatus(rooms []Room, s StatusFilter) []Room {
	switch s {
	case StatusStreaming:
		return keep(rooms, Room.IsStreaming)
	case StatusRecording:
		return keep(rooms, Room.IsRecording)
	default:
		return rooms
	}
}

// SearchRooms keeps rooms whose room id, name or title contains query,
// case-insensitively.
func SearchRooms(rooms []Room, query string) []Room {
	if query == "" {
		return rooms
	}
	q := strings.ToLower(query)
	return keep(rooms, func(r Room) bool {
		return strings.Contains(strconv.FormatInt(r.RoomID(), 10), q) ||
			strings.Contains(strings.ToLower(r.Name()), q) ||
			strings.Contains(strings.ToLower(r.Title()), q)
	})
}

// RoomCounts are the headline aggregates.
type RoomCounts struct {
	Total     int `json:"total"`
	Streaming int `json:"streaming"`
	Recording int `json:"recording"`
}

// CountRooms tallies rooms.
func CountRooms(rooms []Room) RoomCounts {
	c := RoomCounts{Total: len(rooms)}
	for _, r := range rooms {
		if r.IsStreaming() {
			c.Streaming++
		}
		if r.IsRecording() {
			c.Recording++
		}
	}
	return c
}

// DistinctHosts lists recorder hosts of type t in first-seen order.
func DistinctHosts(rooms []Room, t RecType) []string {
	seen := make(map[string]struct{})
	hosts := []string{}
	for _, r := range rooms {
		ref := r.RecServer()
		if ref.Type != t {
			continue
		}
		if _, ok := seen[ref.Host]; ok {
			continue
		}
		seen[ref.Host] = struct{}{}
		hosts = append(hosts, ref.Host)
	}
	return hosts
}

func keep(rooms []Room, pred func(Room) bool) []Room {
	out := make([]Room, 0, len(rooms))
	for _, r := range rooms {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
