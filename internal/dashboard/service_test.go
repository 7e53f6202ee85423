package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"recstatus-dashboard/internal/platform/clock"
	"recstatus-dashboard/internal/platform/notify"
)

type serviceFixture struct {
	up      *upstream
	notes   *notify.Recorder
	svc     *Service
	rooms   *RoomStore
	servers *ServerStore
}

func newServiceFixture(t *testing.T, handle http.HandlerFunc) *serviceFixture {
	t.Helper()
	return newServiceFixtureWithToken(t, "", handle)
}

// newServiceFixtureWithToken starts with token stored when it is non-empty.
func newServiceFixtureWithToken(t *testing.T, token string, handle http.HandlerFunc) *serviceFixture {
	t.Helper()
	u := newUpstream(t, handle)
	store := newMemoryStore()
	if token != "" {
		store.Set(TokenKey, token)
	}
	c := u.client(t, store)
	fc := clock.Fake(epoch)
	rooms := NewRoomStore(RoomStoreConfig{Lister: c, Clock: fc, Logger: testLogger()})
	servers := NewServerStore(ServerStoreConfig{Lister: c, Rooms: rooms, Clock: fc, Logger: testLogger()})
	notes := newRecorder()
	NewSession(c, store, notes, testLogger())
	return &serviceFixture{
		up:      u,
		notes:   notes,
		svc:     NewService(c, rooms, servers, notes, testLogger()),
		rooms:   rooms,
		servers: servers,
	}
}

func (f *serviceFixture) paths() []string {
	var out []string
	for _, c := range f.up.Calls() {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

func TestService_AddRoom_notifies_and_refreshes(t *testing.T) {
	f := newServiceFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, string(jsonArray(rechemeJSON("a", 5, "h", true, false))))
			return
		}
		writeJSON(w, http.StatusOK, `{"ok": true}`)
	})

	if err := f.svc.AddRoom(context.Background(), 5, AddRoomOptions{}); err != nil {
		t.Fatalf("AddRoom: %v", err)
	}
	last, _ := f.notes.Last()
	if last.Level != "success" || last.Text != "room 5 added" {
		t.Errorf("notification: %+v", last)
	}
	paths := f.paths()
	if len(paths) != 2 || paths[0] != "POST /api/room" || paths[1] != "GET /api/room" {
		t.Errorf("calls: %v", paths)
	}
	if n := len(f.rooms.Rooms()); n != 1 {
		t.Errorf("expected refreshed rooms, got %d", n)
	}
}

func TestService_failure_message(t *testing.T) {
	f := newServiceFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"detail": "room already exists"}`)
	})

	err := f.svc.AddRoom(context.Background(), 5, AddRoomOptions{})
	if !errors.Is(err, ErrServer) {
		t.Fatalf("expected Server error, got %v", err)
	}
	last, _ := f.notes.Last()
	if last.Level != "error" || last.Text != "add room failed: room already exists" {
		t.Errorf("notification: %+v", last)
	}
	if n := len(f.up.Calls()); n != 1 {
		t.Errorf("no refresh expected after failure, got %d calls", n)
	}
}

func TestService_validation_failure_is_reported(t *testing.T) {
	f := newServiceFixture(t, nil)

	err := f.svc.AddServer(context.Background(), ServerSpec{RecType: RecTypeBlrec, RecName: "x", URL: "ftp://x"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	last, _ := f.notes.Last()
	if last.Level != "error" || last.Text != "add server failed: recorder x: url must start with http:// or https://" {
		t.Errorf("notification: %+v", last)
	}
	if n := len(f.up.Calls()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestService_auth_expired_not_reported_twice(t *testing.T) {
	f := newServiceFixtureWithToken(t, "tok-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{}`)
	})

	err := f.svc.DeleteRoom(context.Background(), 5, Target{})
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected AuthExpired, got %v", err)
	}
	msgs := f.notes.Messages()
	if len(msgs) != 1 || msgs[0].Level != "warning" {
		t.Errorf("expected only the session warning, got %+v", msgs)
	}
}

func TestService_auth_expired_without_token_is_reported(t *testing.T) {
	f := newServiceFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{}`)
	})

	err := f.svc.AddRoom(context.Background(), 5, AddRoomOptions{})
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected AuthExpired, got %v", err)
	}
	msgs := f.notes.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one notification, got %+v", msgs)
	}
	if msgs[0].Level != "error" || !strings.Contains(msgs[0].Text, msgAuthExpired) {
		t.Errorf("unexpected notification: %+v", msgs[0])
	}
}

func TestService_ToggleRecording_action_label(t *testing.T) {
	f := newServiceFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, `[]`)
			return
		}
		writeJSON(w, http.StatusInternalServerError, ``)
	})

	f.svc.ToggleRecording(context.Background(), 9, false, Target{})
	last, _ := f.notes.Last()
	if last.Text != "stop recording failed: stop recording failed: 500" {
		t.Errorf("notification: %+v", last)
	}
}

func TestService_server_workflows_refresh_servers(t *testing.T) {
	f := newServiceFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, `[{"recName": "n", "recType": "blrec", "recHost": "h", "recStatus": "online"}]`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := f.svc.AddServer(context.Background(), ServerSpec{RecType: RecTypeBlrec, RecName: "n", URL: "http://h"}); err != nil {
		t.Fatalf("AddServer: %v", err)
	}
	if n := len(f.servers.Servers()); n != 1 {
		t.Errorf("expected refreshed registry, got %d", n)
	}
	if err := f.svc.DeleteServers(context.Background(), []ServerRef{{RecName: "n", RecType: RecTypeBlrec}}); err != nil {
		t.Fatalf("DeleteServers: %v", err)
	}
	last, _ := f.notes.Last()
	if last.Text != "1 servers deleted" {
		t.Errorf("notification: %+v", last)
	}
}
