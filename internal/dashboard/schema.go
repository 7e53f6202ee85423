package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Room is a recording room from either backend. The variant is decided once
// by ParseRoom (or the New*Room constructors) and every accessor switches on
// it; no accessor re-probes the raw shape.
//
// The zero Room has no variant and its accessors panic with an
// UnknownSchema error.
type Room struct {
	variant RecType
	recheme *RechemeRoom
	blrec   *BlrecRoom
}

// RoomStats is the normalized throughput view of a room.
type RoomStats struct {
	// Elapsed is the length of the current recording session.
	Elapsed time.Duration `json:"elapsed"`
	// DownloadRate is the stream download rate in bytes per second.
	DownloadRate float64 `json:"downloadRate"`
	// RecordRate is the disk write rate in bytes per second.
	RecordRate float64 `json:"recordRate"`
	// Downloaded is the number of bytes downloaded this session.
	Downloaded int64 `json:"downloaded"`
}

var errNoVariant = newError(KindUnknownSchema, "room has no recognized variant", nil)

// DetectVariant decides which backend shape raw is. Variant A (recheme) has
// objectId and no user_info; variant B (blrec) has both user_info and
// room_info. Anything else is KindUnknownSchema.
func DetectVariant(raw json.RawMessage) (RecType, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", newError(KindUnknownSchema, "room record is not a JSON object", err)
	}
	_, hasObjectID := fields["objectId"]
	_, hasUserInfo := fields["user_info"]
	_, hasRoomInfo := fields["room_info"]

	switch {
	case hasObjectID && !hasUserInfo:
		return RecTypeRecheme, nil
	case hasUserInfo && hasRoomInfo:
		return RecTypeBlrec, nil
	default:
		return "", newError(KindUnknownSchema, "room record matches neither recheme nor blrec layout", nil)
	}
}

// ParseRoom detects the variant of raw and decodes it.
func ParseRoom(raw json.RawMessage) (Room, error) {
	variant, err := DetectVariant(raw)
	if err != nil {
		return Room{}, err
	}
	switch variant {
	case RecTypeRecheme:
		var r RechemeRoom
		if err := json.Unmarshal(raw, &r); err != nil {
			return Room{}, newError(KindUnknownSchema, "decode recheme room: "+err.Error(), err)
		}
		return NewRechemeRoom(r)
	default:
		var r BlrecRoom
		if err := json.Unmarshal(raw, &r); err != nil {
			return Room{}, newError(KindUnknownSchema, "decode blrec room: "+err.Error(), err)
		}
		return NewBlrecRoom(r)
	}
}

// ParseRooms parses every record. A record that matches neither layout is
// skipped, never given a guessed variant; the remaining rooms are returned
// together with a KindUnknownSchema error naming every skipped record.
func ParseRooms(raws []json.RawMessage) ([]Room, error) {
	rooms := make([]Room, 0, len(raws))
	var skipped []error
	for i, raw := range raws {
		room, err := ParseRoom(raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("room record %d: %w", i, err))
			continue
		}
		rooms = append(rooms, room)
	}
	if len(skipped) == 0 {
		return rooms, nil
	}
	msgs := make([]string, len(skipped))
	for i, err := range skipped {
		msgs[i] = err.Error()
	}
	return rooms, &Error{
		Kind:    KindUnknownSchema,
		Message: fmt.Sprintf("skipped %d of %d room records: %s", len(skipped), len(raws), strings.Join(msgs, "; ")),
		Err:     errors.Join(skipped...),
	}
}

// NewRechemeRoom wraps r as a Room. Its recServer must declare recheme.
func NewRechemeRoom(r RechemeRoom) (Room, error) {
	if r.RecServer.Type != RecTypeRecheme {
		return Room{}, newError(KindUnknownSchema,
			fmt.Sprintf("recheme-shaped room %s declares recType %q", r.ObjectID, r.RecServer.Type), nil)
	}
	return Room{variant: RecTypeRecheme, recheme: &r}, nil
}

// NewBlrecRoom wraps r as a Room. Its recServer must declare blrec.
func NewBlrecRoom(r BlrecRoom) (Room, error) {
	if r.RecServer.Type != RecTypeBlrec {
		return Room{}, newError(KindUnknownSchema,
			fmt.Sprintf("blrec-shaped room %d declares recType %q", r.RoomInfo.RoomID, r.RecServer.Type), nil)
	}
	return Room{variant: RecTypeBlrec, blrec: &r}, nil
}

// dispatch routes an accessor to the variant-specific field path.
func dispatch[T any](r Room, recheme func(*RechemeRoom) T, blrec func(*BlrecRoom) T) T {
	switch r.variant {
	case RecTypeRecheme:
		return recheme(r.recheme)
	case RecTypeBlrec:
		return blrec(r.blrec)
	}
	panic(errNoVariant)
}

func (r Room) IsRecheme() bool { return r.variant == RecTypeRecheme }
func (r Room) IsBlrec() bool   { return r.variant == RecTypeBlrec }

// Type returns the backend family. It is fixed at parse time.
func (r Room) Type() RecType {
	return dispatch(r,
		func(*RechemeRoom) RecType { return RecTypeRecheme },
		func(*BlrecRoom) RecType { return RecTypeBlrec })
}

// UniqueKey is stable across refreshes and namespaced per variant, so keys
// never collide even when room ids coincide.
func (r Room) UniqueKey() string {
	return dispatch(r,
		func(a *RechemeRoom) string { return "recheme:" + a.ObjectID },
		func(b *BlrecRoom) string { return "blrec:" + strconv.FormatInt(b.RoomInfo.RoomID, 10) })
}

func (r Room) Name() string {
	return dispatch(r,
		func(a *RechemeRoom) string { return a.Name },
		func(b *BlrecRoom) string { return b.UserInfo.Name })
}

func (r Room) RoomID() int64 {
	return dispatch(r,
		func(a *RechemeRoom) int64 { return a.RoomID },
		func(b *BlrecRoom) int64 { return b.RoomInfo.RoomID })
}

func (r Room) ShortID() int64 {
	return dispatch(r,
		func(a *RechemeRoom) int64 { return a.ShortID },
		func(b *BlrecRoom) int64 { return b.RoomInfo.ShortRoomID })
}

func (r Room) UID() int64 {
	return dispatch(r,
		func(a *RechemeRoom) int64 { return a.UID },
		func(b *BlrecRoom) int64 { return b.UserInfo.UID })
}

func (r Room) Title() string {
	return dispatch(r,
		func(a *RechemeRoom) string { return a.Title },
		func(b *BlrecRoom) string { return b.RoomInfo.Title })
}

func (r Room) AreaParent() string {
	return dispatch(r,
		func(a *RechemeRoom) string { return a.AreaNameParent },
		func(b *BlrecRoom) string { return b.RoomInfo.ParentAreaName })
}

func (r Room) AreaChild() string {
	return dispatch(r,
		func(a *RechemeRoom) string { return a.AreaNameChild },
		func(b *BlrecRoom) string { return b.RoomInfo.AreaName })
}

// IsStreaming reports whether the streamer is live right now.
func (r Room) IsStreaming() bool {
	return dispatch(r,
		func(a *RechemeRoom) bool { return a.Streaming },
		func(b *BlrecRoom) bool { return b.RoomInfo.LiveStatus == blrecLiveStatusLive })
}

// IsRecording reports whether the recorder is writing the stream.
func (r Room) IsRecording() bool {
	return dispatch(r,
		func(a *RechemeRoom) bool { return a.Recording },
		func(b *BlrecRoom) bool { return b.TaskStatus.RunningStatus == blrecRunningRecording })
}

func (r Room) RecServer() RecServerRef {
	return dispatch(r,
		func(a *RechemeRoom) RecServerRef { return refOf(a.RecServer) },
		func(b *BlrecRoom) RecServerRef { return refOf(b.RecServer) })
}

// Stats normalizes the variant-specific counters. Missing recheme stat
// blocks yield zero values.
func (r Room) Stats() RoomStats {
	return dispatch(r, rechemeStats, blrecStats)
}

// Recheme returns the raw variant A record.
func (r Room) Recheme() (*RechemeRoom, bool) { return r.recheme, r.variant == RecTypeRecheme }

// Blrec returns the raw variant B record.
func (r Room) Blrec() (*BlrecRoom, bool) { return r.blrec, r.variant == RecTypeBlrec }

func refOf(b RecServerBinding) RecServerRef {
	return RecServerRef{Name: b.Name, Type: b.Type, Host: b.Host}
}

func rechemeStats(a *RechemeRoom) RoomStats {
	var s RoomStats
	if rs := a.RecordingStats; rs != nil {
		s.Elapsed = time.Duration(rs.SessionDuration * float64(time.Millisecond))
	}
	if io := a.IOStats; io != nil {
		s.DownloadRate = io.NetworkMbps * 1e6 / 8
		s.RecordRate = io.DiskMBps * 1e6
		s.Downloaded = io.NetworkBytesDownloaded
	}
	return s
}

func blrecStats(b *BlrecRoom) RoomStats {
	return RoomStats{
		Elapsed:      time.Duration(b.TaskStatus.RecElapsed * float64(time.Second)),
		DownloadRate: b.TaskStatus.DLRate,
		RecordRate:   b.TaskStatus.RecRate,
		Downloaded:   b.TaskStatus.DLTotal,
	}
}
