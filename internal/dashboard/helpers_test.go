package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recstatus-dashboard/internal/platform/clock"
	"recstatus-dashboard/internal/platform/kvstore"
	"recstatus-dashboard/internal/platform/notify"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func rechemeJSON(objectID string, roomID int64, host string, streaming, recording bool) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"objectId": %q, "roomId": %d, "shortId": 0, "name": "streamer-%s", "uid": 7,
		"title": "title %s", "areaNameParent": "Games", "areaNameChild": "Arcade",
		"streaming": %t, "recording": %t, "autoRecord": true,
		"recordingStats": {"sessionDuration": 65000},
		"ioStats": {"networkBytesDownloaded": 2048, "networkMbps": 8, "diskMBps": 1},
		"recServer": {"recName": "r-%s", "recType": "recheme", "recHost": %q, "recManage": true}
	}`, objectID, roomID, objectID, objectID, streaming, recording, host, host))
}

func blrecJSON(roomID int64, name, host string, live bool, running string) json.RawMessage {
	status := 0
	if live {
		status = 1
	}
	return json.RawMessage(fmt.Sprintf(`{
		"user_info": {"name": %q, "uid": 9},
		"room_info": {"uid": 9, "room_id": %d, "short_room_id": 5, "area_name": "Chat",
			"parent_area_name": "Life", "live_status": %d, "title": "%s live"},
		"task_status": {"running_status": %q, "dl_rate": 1024, "rec_rate": 512,
			"rec_elapsed": 30, "dl_total": 4096},
		"recServer": {"recName": "b-%s", "recType": "blrec", "recHost": %q, "recManage": true}
	}`, name, roomID, status, name, running, host, host))
}

func mustRoom(t *testing.T, raw json.RawMessage) Room {
	t.Helper()
	r, err := ParseRoom(raw)
	if err != nil {
		t.Fatalf("ParseRoom: %v", err)
	}
	return r
}

func jsonArray(raws ...json.RawMessage) []byte {
	b, _ := json.Marshal(raws)
	return b
}

// upstream is a fake aggregator API that records every request.
type upstream struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	calls  []recordedCall
	handle http.HandlerFunc
}

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
	Header http.Header
}

func newUpstream(t *testing.T, handle http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{t: t, handle: handle}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.calls = append(u.calls, recordedCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
			Header: r.Header.Clone(),
		})
		handle := u.handle
		u.mu.Unlock()
		if handle == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		handle(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) setHandler(h http.HandlerFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handle = h
}

func (u *upstream) Calls() []recordedCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recordedCall(nil), u.calls...)
}

func (u *upstream) client(t *testing.T, store KeyValueStore) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		BaseURL:    u.srv.URL,
		HTTPClient: u.srv.Client(),
		Store:      store,
		Timeout:    2 * time.Second,
		Logger:     testLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// fakeRoomLister returns scripted results.
type fakeRoomLister struct {
	mu    sync.Mutex
	rooms []Room
	err   error
	calls atomic.Int32
	// block, when set, is waited on before returning.
	block chan struct{}
}

func (f *fakeRoomLister) ListRooms(ctx context.Context) ([]Room, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rooms, f.err
}

func (f *fakeRoomLister) set(rooms []Room, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms, f.err = rooms, err
}

type fakeServerLister struct {
	servers []RecServer
	err     error
	calls   atomic.Int32
}

func (f *fakeServerLister) ListServers(ctx context.Context, q ServerQuery) ([]RecServer, error) {
	f.calls.Add(1)
	return f.servers, f.err
}

func newTestRoomStore(lister RoomLister, c clock.Clock) *RoomStore {
	return NewRoomStore(RoomStoreConfig{Lister: lister, Clock: c, Logger: testLogger()})
}

func newRecorder() *notify.Recorder {
	return notify.NewRecorder(0, nil)
}

func newMemoryStore() *kvstore.Memory {
	return kvstore.NewMemory()
}
