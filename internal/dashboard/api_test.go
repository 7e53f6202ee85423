package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func TestClient_ListRooms_array_and_wrapped(t *testing.T) {
	raws := jsonArray(rechemeJSON("a", 1, "h1", true, true), blrecJSON(2, "b", "h2", false, "waiting"))
	wrapped, _ := json.Marshal(map[string]json.RawMessage{"data": raws})

	for name, body := range map[string]string{"array": string(raws), "wrapped": string(wrapped)} {
		t.Run(name, func(t *testing.T) {
			u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			rooms, err := u.client(t, newMemoryStore()).ListRooms(context.Background())
			if err != nil {
				t.Fatalf("ListRooms: %v", err)
			}
			if len(rooms) != 2 || !rooms[0].IsRecheme() || !rooms[1].IsBlrec() {
				t.Fatalf("unexpected rooms: %+v", rooms)
			}
			if u.Calls()[0].Path != "/api/room" {
				t.Errorf("path: got %q", u.Calls()[0].Path)
			}
		})
	}
}

func TestClient_ListRooms_malformed(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "object": `{"rooms": []}`, "text": "OK"} {
		t.Run(name, func(t *testing.T) {
			u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			_, err := u.client(t, newMemoryStore()).ListRooms(context.Background())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected MalformedResponse, got %v", err)
			}
		})
	}
}

func TestClient_ListRooms_unknown_schema(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id": 1}]`)
	})
	_, err := u.client(t, newMemoryStore()).ListRooms(context.Background())
	if !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("expected UnknownSchema, got %v", err)
	}
}

func TestClient_AddRoom(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	err := c.AddRoom(context.Background(), 42, AddRoomOptions{
		AutoRecord: boolPtr(false),
		Target:     Target{RecType: RecTypeBlrec, RecName: "main"},
	})
	if err != nil {
		t.Fatalf("AddRoom: %v", err)
	}
	call := u.Calls()[0]
	if call.Method != http.MethodPost || call.Path != "/api/room" {
		t.Errorf("call: %+v", call)
	}
	var body map[string]any
	json.Unmarshal([]byte(call.Body), &body)
	if body["roomId"] != float64(42) || body["autoRecord"] != false || body["recType"] != "blrec" || body["recName"] != "main" {
		t.Errorf("body: %v", body)
	}
}

func TestClient_AddRoom_rejects_non_positive_id_locally(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	for _, id := range []int64{0, -3} {
		if err := c.AddRoom(context.Background(), id, AddRoomOptions{}); !errors.Is(err, ErrValidation) {
			t.Errorf("id %d: expected Validation, got %v", id, err)
		}
	}
	if err := c.AddRoom(context.Background(), 1, AddRoomOptions{Target: Target{RecType: "ftp"}}); !errors.Is(err, ErrValidation) {
		t.Errorf("bad recType: expected Validation, got %v", err)
	}
	if n := len(u.Calls()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestClient_AddRoomsBatch_defaults_auto_record(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	err := c.AddRoomsBatch(context.Background(), []RoomRequest{
		{RoomID: 1},
		{RoomID: 2, AutoRecord: boolPtr(false)},
	}, Target{})
	if err != nil {
		t.Fatalf("AddRoomsBatch: %v", err)
	}
	call := u.Calls()[0]
	if call.Path != "/api/room/batch" {
		t.Errorf("path: got %q", call.Path)
	}
	want := `{"rooms":[{"roomId":1,"autoRecord":true},{"roomId":2,"autoRecord":false}]}`
	if call.Body != want {
		t.Errorf("body:\n got %s\nwant %s", call.Body, want)
	}
}

func TestClient_DeleteRoom_and_ToggleRecording_query(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())
	target := Target{RecType: RecTypeRecheme, RecName: "r1"}

	if err := c.DeleteRoom(context.Background(), 7, target); err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if err := c.ToggleRecording(context.Background(), 7, true, target); err != nil {
		t.Fatalf("ToggleRecording: %v", err)
	}

	calls := u.Calls()
	if calls[0].Method != http.MethodDelete || calls[0].Path != "/api/room/7" {
		t.Errorf("delete call: %+v", calls[0])
	}
	q, _ := url.ParseQuery(calls[0].Query)
	if q.Get("recType") != "recheme" || q.Get("recName") != "r1" {
		t.Errorf("delete query: %v", q)
	}
	if calls[1].Path != "/api/room/7/record" || calls[1].Body != `{"enabled":true}` {
		t.Errorf("record call: %+v", calls[1])
	}
}

func TestClient_ListServers(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"recName": "a", "recType": "blrec", "recHost": "h", "recStatus": "online", "recManage": true}]`)
	})
	c := u.client(t, newMemoryStore())

	servers, err := c.ListServers(context.Background(), ServerQuery{RecType: RecTypeBlrec, RecStatus: ServerOnline})
	if err != nil {
		t.Fatalf("ListServers: %v", err)
	}
	want := RecServer{Name: "a", Type: RecTypeBlrec, Host: "h", Status: ServerOnline, Manage: true}
	if len(servers) != 1 || servers[0] != want {
		t.Errorf("servers: %+v", servers)
	}
	q, _ := url.ParseQuery(u.Calls()[0].Query)
	if q.Get("recType") != "blrec" || q.Get("recStatus") != "online" || q.Has("recName") {
		t.Errorf("query: %v", q)
	}
}

func TestClient_AddServer_validation_sends_nothing(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	specs := map[string]ServerSpec{
		"ftp url":      {RecType: RecTypeBlrec, RecName: "a", URL: "ftp://x"},
		"missing name": {RecType: RecTypeBlrec, URL: "http://x"},
		"bad type":     {RecType: "other", RecName: "a", URL: "http://x"},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			if err := c.AddServer(context.Background(), spec); !errors.Is(err, ErrValidation) {
				t.Errorf("expected Validation, got %v", err)
			}
		})
	}
	if err := c.AddServersBatch(context.Background(), []ServerSpec{
		{RecType: RecTypeBlrec, RecName: "ok", URL: "http://ok"},
		{RecType: RecTypeBlrec, RecName: "bad", URL: "ftp://x"},
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("batch: expected Validation, got %v", err)
	}
	if n := len(u.Calls()); n != 0 {
		t.Errorf("expected no requests, got %d", n)
	}
}

func TestClient_AddServer_credentials_per_type(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	err := c.AddServer(context.Background(), ServerSpec{
		RecType: RecTypeRecheme, RecName: "r", URL: "https://r",
		Basic: boolPtr(true), BasicUser: "u", BasicPass: "p", BasicKey: "ignored",
	})
	if err != nil {
		t.Fatalf("AddServer: %v", err)
	}
	var body map[string]any
	json.Unmarshal([]byte(u.Calls()[0].Body), &body)
	if body["manage"] != true || body["basic"] != true {
		t.Errorf("defaults: %v", body)
	}
	if body["basicUser"] != "u" || body["basicPass"] != "p" {
		t.Errorf("recheme credentials: %v", body)
	}
	if _, ok := body["basicKey"]; ok {
		t.Error("recheme server should not receive basicKey")
	}
}

func TestClient_AddServersBatch_infers_basic(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	err := c.AddServersBatch(context.Background(), []ServerSpec{
		{RecType: RecTypeBlrec, RecName: "b", URL: "http://b", BasicKey: "k"},
		{RecType: RecTypeRecheme, RecName: "r", URL: "http://r"},
	})
	if err != nil {
		t.Fatalf("AddServersBatch: %v", err)
	}
	var body []ServerSpec
	if err := json.Unmarshal([]byte(u.Calls()[0].Body), &body); err != nil {
		t.Fatal(err)
	}
	if !*body[0].Basic || *body[1].Basic {
		t.Errorf("basic inference: %v %v", *body[0].Basic, *body[1].Basic)
	}
	if !*body[0].Manage || !*body[1].Manage {
		t.Error("manage should default to true")
	}
}

func TestClient_DeleteServers(t *testing.T) {
	u := newUpstream(t, nil)
	c := u.client(t, newMemoryStore())

	if err := c.DeleteServers(context.Background(), []ServerRef{{RecName: "a", RecType: RecTypeBlrec}}); err != nil {
		t.Fatalf("DeleteServers: %v", err)
	}
	call := u.Calls()[0]
	if call.Method != http.MethodDelete || call.Path != "/api/server/batch" {
		t.Errorf("call: %+v", call)
	}
	if call.Body != `{"servers":[{"recName":"a","recType":"blrec"}]}` {
		t.Errorf("body: %s", call.Body)
	}
	if err := c.DeleteServer(context.Background(), ServerRef{RecName: "a"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected Validation for missing type, got %v", err)
	}
}

func TestClient_AuthStatus_and_Login(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, `{"auth_required": true}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"token": "t-9"}`)
	})
	c := u.client(t, newMemoryStore())

	status, err := c.AuthStatus(context.Background())
	if err != nil || !status.AuthRequired {
		t.Fatalf("AuthStatus: %+v %v", status, err)
	}
	result, err := c.Login(context.Background(), "admin", "pw")
	if err != nil || result.Token != "t-9" {
		t.Fatalf("Login: %+v %v", result, err)
	}
	if _, err := c.Login(context.Background(), "", "pw"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected Validation for empty username, got %v", err)
	}
}
