package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Target optionally narrows a room operation to one recorder.
type Target struct {
	RecType RecType
	RecName string
}

func (t Target) validate() error {
	if t.RecType != "" && !t.RecType.Valid() {
		return validationError("unsupported recorder type %q", t.RecType)
	}
	return nil
}

func (t Target) query() url.Values {
	q := url.Values{}
	if t.RecType != "" {
		q.Set("recType", string(t.RecType))
	}
	if t.RecName != "" {
		q.Set("recName", t.RecName)
	}
	return q
}

// ListRooms fetches GET /api/room and parses every record into a Room.
// The body may be a bare array or wrapped as {"data": [...]}.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	body, err := c.Do(ctx, "/api/room", RequestOptions{ErrorLabel: "fetch room list failed"})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, newError(KindMalformedResponse, "room list response has no JSON payload", nil)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Data == nil {
			return nil, newError(KindMalformedResponse, "room list response is neither an array nor {data: [...]}", err)
		}
		raws = wrapped.Data
	}
	return ParseRooms(raws)
}

// RoomRequest is one entry of a batch add.
type RoomRequest struct {
	RoomID int64 `json:"roomId"`
	// AutoRecord defaults to true when nil.
	AutoRecord *bool `json:"autoRecord,omitempty"`
}

// AddRoomOptions are the optional fields of POST /api/room.
type AddRoomOptions struct {
	AutoRecord *bool
	Target
}

// AddRoom registers roomID with a recorder. roomID must be positive.
func (c *Client) AddRoom(ctx context.Context, roomID int64, opts AddRoomOptions) error {
	if roomID <= 0 {
		return validationError("invalid room id %d: must be a positive integer", roomID)
	}
	if err := opts.validate(); err != nil {
		return err
	}
	payload := map[string]any{"roomId": roomID}
	if opts.AutoRecord != nil {
		payload["autoRecord"] = *opts.AutoRecord
	}
	if opts.RecType != "" {
		payload["recType"] = opts.RecType
	}
	if opts.RecName != "" {
		if strings.HasPrefix(opts.RecName, "http://") || strings.HasPrefix(opts.RecName, "https://") {
			c.log.Warn("recName looks like a URL, the server expects a recorder name", "recName", opts.RecName)
		}
		payload["recName"] = opts.RecName
	}
	_, err := c.Do(ctx, "/api/room", RequestOptions{
		Method:     http.MethodPost,
		Body:       payload,
		ErrorLabel: "add room failed",
	})
	return err
}

// AddRoomsBatch registers several rooms in one call.
func (c *Client) AddRoomsBatch(ctx context.Context, rooms []RoomRequest, target Target) error {
	if len(rooms) == 0 {
		return validationError("no rooms to add")
	}
	if err := target.validate(); err != nil {
		return err
	}
	type entry struct {
		RoomID     int64 `json:"roomId"`
		AutoRecord bool  `json:"autoRecord"`
	}
	entries := make([]entry, 0, len(rooms))
	for _, r := range rooms {
		if r.RoomID <= 0 {
			return validationError("invalid room id %d: must be a positive integer", r.RoomID)
		}
		auto := true
		if r.AutoRecord != nil {
			auto = *r.AutoRecord
		}
		entries = append(entries, entry{RoomID: r.RoomID, AutoRecord: auto})
	}
	payload := map[string]any{"rooms": entries}
	if target.RecType != "" {
		payload["recType"] = target.RecType
	}
	if target.RecName != "" {
		payload["recName"] = target.RecName
	}
	_, err := c.Do(ctx, "/api/room/batch", RequestOptions{
		Method:     http.MethodPost,
		Body:       payload,
		ErrorLabel: "batch add rooms failed",
	})
	return err
}

// DeleteRoom removes roomID, optionally only from target.
func (c *Client) DeleteRoom(ctx context.Context, roomID int64, target Target) error {
	if roomID <= 0 {
		return validationError("invalid room id %d: must be a positive integer", roomID)
	}
	if err := target.validate(); err != nil {
		return err
	}
	_, err := c.Do(ctx, "/api/room/"+strconv.FormatInt(roomID, 10), RequestOptions{
		Method:     http.MethodDelete,
		Query:      target.query(),
		ErrorLabel: "delete room failed",
	})
	return err
}

// ToggleRecording starts or stops recording roomID.
func (c *Client) ToggleRecording(ctx context.Context, roomID int64, enabled bool, target Target) error {
	if roomID <= 0 {
		return validationError("invalid room id %d: must be a positive integer", roomID)
	}
	if err := target.validate(); err != nil {
		return err
	}
	label := "stop recording failed"
	if enabled {
		label = "start recording failed"
	}
	_, err := c.Do(ctx, "/api/room/"+strconv.FormatInt(roomID, 10)+"/record", RequestOptions{
		Method:     http.MethodPost,
		Body:       map[string]bool{"enabled": enabled},
		Query:      target.query(),
		ErrorLabel: label,
	})
	return err
}

// ServerQuery filters GET /api/server. Empty fields are omitted.
type ServerQuery struct {
	RecName   string
	RecType   RecType
	RecStatus ServerStatus
}

// ListServers fetches the recorder-server registry.
func (c *Client) ListServers(ctx context.Context, q ServerQuery) ([]RecServer, error) {
	values := url.Values{}
	if q.RecName != "" {
		values.Set("recName", q.RecName)
	}
	if q.RecType != "" {
		values.Set("recType", string(q.RecType))
	}
	if q.RecStatus != "" {
		values.Set("recStatus", string(q.RecStatus))
	}
	body, err := c.Do(ctx, "/api/server", RequestOptions{Query: values, ErrorLabel: "fetch servers failed"})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, newError(KindMalformedResponse, "server list response has no JSON payload", nil)
	}
	var servers []RecServer
	if err := json.Unmarshal(body, &servers); err != nil {
		return nil, newError(KindMalformedResponse, "decode server list: "+err.Error(), err)
	}
	if servers == nil {
		servers = []RecServer{}
	}
	return servers, nil
}

// ServerSpec describes a recorder to register.
type ServerSpec struct {
	RecType RecType `json:"recType"`
	RecName string  `json:"recName"`
	URL     string  `json:"url"`
	// Manage defaults to true when nil.
	Manage *bool `json:"manage,omitempty"`
	// Basic enables HTTP basic auth towards the recorder. When nil in a
	// batch it is inferred from the presence of credentials.
	Basic     *bool  `json:"basic,omitempty"`
	BasicUser string `json:"basicUser,omitempty"`
	BasicPass string `json:"basicPass,omitempty"`
	BasicKey  string `json:"basicKey,omitempty"`
}

func (s ServerSpec) validate() error {
	if s.RecType == "" || s.RecName == "" || s.URL == "" {
		return validationError("recorder type, name and url are required")
	}
	if !s.RecType.Valid() {
		return validationError("recorder %s: type must be %q or %q", s.RecName, RecTypeRecheme, RecTypeBlrec)
	}
	if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return validationError("recorder %s: url must start with http:// or https://", s.RecName)
	}
	return nil
}

// payload builds the single-add body. Credentials are forwarded only for the
// scheme the recorder type understands: user/pass for recheme, key for blrec.
func (s ServerSpec) payload() map[string]any {
	manage := true
	if s.Manage != nil {
		manage = *s.Manage
	}
	p := map[string]any{
		"recType": s.RecType,
		"recName": s.RecName,
		"url":     s.URL,
		"manage":  manage,
	}
	if s.Basic != nil {
		p["basic"] = *s.Basic
		if *s.Basic {
			switch {
			case s.RecType == RecTypeRecheme && s.BasicUser != "" && s.BasicPass != "":
				p["basicUser"] = s.BasicUser
				p["basicPass"] = s.BasicPass
			case s.RecType == RecTypeBlrec && s.BasicKey != "":
				p["basicKey"] = s.BasicKey
			}
		}
	}
	return p
}

// AddServer registers a recorder. The spec is validated locally first.
func (c *Client) AddServer(ctx context.Context, spec ServerSpec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	_, err := c.Do(ctx, "/api/server", RequestOptions{
		Method:     http.MethodPost,
		Body:       spec.payload(),
		ErrorLabel: "add server failed",
	})
	return err
}

// AddServersBatch registers several recorders; nothing is sent if any spec
// is invalid.
func (c *Client) AddServersBatch(ctx context.Context, specs []ServerSpec) error {
	if len(specs) == 0 {
		return validationError("no servers to add")
	}
	body := make([]ServerSpec, 0, len(specs))
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return err
		}
		if s.Manage == nil {
			s.Manage = boolPtr(true)
		}
		if s.Basic == nil {
			s.Basic = boolPtr(s.BasicUser != "" || s.BasicPass != "" || s.BasicKey != "")
		}
		body = append(body, s)
	}
	_, err := c.Do(ctx, "/api/server/batch", RequestOptions{
		Method:     http.MethodPost,
		Body:       body,
		ErrorLabel: "batch add servers failed",
	})
	return err
}

// ServerRef names a registered recorder.
type ServerRef struct {
	RecName string  `json:"recName"`
	RecType RecType `json:"recType"`
}

func (r ServerRef) validate() error {
	if r.RecName == "" || r.RecType == "" {
		return validationError("recorder name and type are required")
	}
	if !r.RecType.Valid() {
		return validationError("recorder %s: type must be %q or %q", r.RecName, RecTypeRecheme, RecTypeBlrec)
	}
	return nil
}

// DeleteServer unregisters one recorder.
func (c *Client) DeleteServer(ctx context.Context, ref ServerRef) error {
	if err := ref.validate(); err != nil {
		return err
	}
	_, err := c.Do(ctx, "/api/server", RequestOptions{
		Method:     http.MethodDelete,
		Body:       ref,
		ErrorLabel: "delete server failed",
	})
	return err
}

// DeleteServers unregisters several recorders in one call.
func (c *Client) DeleteServers(ctx context.Context, refs []ServerRef) error {
	if len(refs) == 0 {
		return validationError("no servers to delete")
	}
	for _, r := range refs {
		if err := r.validate(); err != nil {
			return err
		}
	}
	_, err := c.Do(ctx, "/api/server/batch", RequestOptions{
		Method:     http.MethodDelete,
		Body:       map[string]any{"servers": refs},
		ErrorLabel: "batch delete servers failed",
	})
	return err
}

// AuthStatus is the body of GET /api/login.
type AuthStatus struct {
	AuthRequired bool `json:"auth_required"`
}

// LoginResult is the body of POST /api/login.
type LoginResult struct {
	Token        string `json:"token"`
	AuthRequired bool   `json:"auth_required"`
}

// AuthStatus probes whether the aggregator requires authentication.
func (c *Client) AuthStatus(ctx context.Context) (AuthStatus, error) {
	var status AuthStatus
	body, err := c.Do(ctx, "/api/login", RequestOptions{Anonymous: true, ErrorLabel: "check auth status failed"})
	if err != nil {
		return status, err
	}
	if body == nil {
		return status, newError(KindMalformedResponse, "auth status response has no JSON payload", nil)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return status, newError(KindMalformedResponse, "decode auth status: "+err.Error(), err)
	}
	return status, nil
}

// Login exchanges credentials for a token. It does not store the token;
// Session.Login does.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var result LoginResult
	if username == "" || password == "" {
		return result, validationError("username and password are required")
	}
	body, err := c.Do(ctx, "/api/login", RequestOptions{
		Method:     http.MethodPost,
		Body:       map[string]string{"username": username, "password": password},
		Anonymous:  true,
		ErrorLabel: "login failed",
	})
	if err != nil {
		return result, err
	}
	if body != nil {
		if err := json.Unmarshal(body, &result); err != nil {
			return result, newError(KindMalformedResponse, fmt.Sprintf("decode login response: %v", err), err)
		}
	}
	return result, nil
}

func boolPtr(b bool) *bool { return &b }
