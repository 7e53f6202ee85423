package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"recstatus-dashboard/internal/platform/metrics"
	"recstatus-dashboard/internal/platform/notify"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the dashboard core as a local JSON API using go-chi.
type Handler struct {
	dash    *Dashboard
	log     *slog.Logger
	metrics *metrics.Metrics
	// notes may be nil, in which case GET /api/notifications returns 404.
	notes *notify.Recorder
}

// NewHandler returns a Handler for d. Metrics and notes may be nil.
func NewHandler(d *Dashboard, log *slog.Logger, m *metrics.Metrics, notes *notify.Recorder) *Handler {
	return &Handler{dash: d, log: log, metrics: m, notes: notes}
}

// Routes mounts every endpoint on r. /metrics is mounted only when the
// handler has Metrics.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Get("/metrics", h.Metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.ListRooms)
			r.Post("/", h.AddRoom)
			r.Get("/summary", h.RoomSummary)
			r.Post("/refresh", h.RefreshRooms)
			r.Delete("/{roomId}", h.DeleteRoom)
			r.Post("/{roomId}/record", h.ToggleRecording)
		})
		r.Route("/servers", func(r chi.Router) {
			r.Get("/", h.ListServers)
			r.Get("/stats", h.ServerStats)
			r.Post("/refresh", h.RefreshServers)
		})
		r.Put("/visibility", h.SetVisibility)
		r.Get("/notifications", h.Notifications)
	})
}

// RoomView is the normalized JSON shape of a room.
type RoomView struct {
	Key           string       `json:"key"`
	Type          RecType      `json:"type"`
	RoomID        int64        `json:"roomId"`
	ShortID       int64        `json:"shortId"`
	UID           int64        `json:"uid"`
	Name          string       `json:"name"`
	Title         string       `json:"title"`
	AreaParent    string       `json:"areaParent"`
	AreaChild     string       `json:"areaChild"`
	Streaming     bool         `json:"streaming"`
	Recording     bool         `json:"recording"`
	RecServer     RecServerRef `json:"recServer"`
	Stats         RoomStats    `json:"stats"`
	Elapsed       string       `json:"elapsedText"`
	DownloadSpeed string       `json:"downloadRateText"`
	RecordSpeed   string       `json:"recordRateText"`
}

// NewRoomView flattens r through its accessors.
func NewRoomView(r Room) RoomView {
	stats := r.Stats()
	return RoomView{
		Key:           r.UniqueKey(),
		Type:          r.Type(),
		RoomID:        r.RoomID(),
		ShortID:       r.ShortID(),
		UID:           r.UID(),
		Name:          r.Name(),
		Title:         r.Title(),
		AreaParent:    r.AreaParent(),
		AreaChild:     r.AreaChild(),
		Streaming:     r.IsStreaming(),
		Recording:     r.IsRecording(),
		RecServer:     r.RecServer(),
		Stats:         stats,
		Elapsed:       FormatDuration(stats.Elapsed),
		DownloadSpeed: FormatDataRate(stats.DownloadRate),
		RecordSpeed:   FormatDataRate(stats.RecordRate),
	}
}

// RoomSummary is the body of GET /api/rooms/summary.
type RoomSummary struct {
	Counts        RoomCounts           `json:"counts"`
	Hosts         map[RecType][]string `json:"hosts"`
	Loading       bool                 `json:"loading"`
	LastUpdated   string               `json:"lastUpdated"`
	LastError     string               `json:"lastError,omitempty"`
	Authenticated bool                 `json:"authenticated"`
	AutoRefresh   bool                 `json:"autoRefresh"`
	Visible       bool                 `json:"visible"`
}

// ListRooms handles GET /api/rooms?type=&status=&q=.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	f, err := parseRoomFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	rooms := FilterRooms(h.dash.Rooms.Rooms(), f)
	views := make([]RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, NewRoomView(room))
	}
	h.writeJSON(w, http.StatusOK, views)
}

// RoomSummary handles GET /api/rooms/summary.
func (h *Handler) RoomSummary(w http.ResponseWriter, r *http.Request) {
	rooms := h.dash.Rooms
	h.writeJSON(w, http.StatusOK, RoomSummary{
		Counts: rooms.Counts(),
		Hosts: map[RecType][]string{
			RecTypeRecheme: rooms.ServerHosts(RecTypeRecheme),
			RecTypeBlrec:   rooms.ServerHosts(RecTypeBlrec),
		},
		Loading:       rooms.Loading(),
		LastUpdated:   rooms.LastUpdatedText(),
		LastError:     rooms.LastError(),
		Authenticated: h.dash.Session.IsAuthenticated(),
		AutoRefresh:   h.dash.AutoRefreshRunning(),
		Visible:       h.dash.Visibility.Visible(),
	})
}

// RefreshRooms handles POST /api/rooms/refresh. A throttled call still
// answers 202.
func (h *Handler) RefreshRooms(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Rooms.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type addRoomRequest struct {
	RoomID     int64   `json:"roomId"`
	AutoRecord *bool   `json:"autoRecord"`
	RecType    RecType `json:"recType"`
	RecName    string  `json:"recName"`
	// Rooms switches to a batch add when non-empty.
	Rooms []RoomRequest `json:"rooms"`
}

// AddRoom handles POST /api/rooms.
// Body: {"roomId": 123, "autoRecord": true, "recType": "blrec", "recName": "main"}
// or {"rooms": [{"roomId": 1}, ...], "recType": ...}.
func (h *Handler) AddRoom(w http.ResponseWriter, r *http.Request) {
	var req addRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid add room body", slog.String("error", err.Error()))
		h.writeError(w, validationError("invalid request body: %v", err))
		return
	}
	target := Target{RecType: req.RecType, RecName: req.RecName}

	var err error
	if len(req.Rooms) > 0 {
		err = h.dash.Service.AddRoomsBatch(r.Context(), req.Rooms, target)
	} else {
		err = h.dash.Service.AddRoom(r.Context(), req.RoomID, AddRoomOptions{AutoRecord: req.AutoRecord, Target: target})
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteRoom handles DELETE /api/rooms/{roomId}?recType=&recName=.
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.dash.Service.DeleteRoom(r.Context(), roomID, targetFromQuery(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleRecording handles POST /api/rooms/{roomId}/record.
// Body: {"enabled": true}.
func (h *Handler) ToggleRecording(w http.ResponseWriter, r *http.Request) {
	roomID, err := parseRoomID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		h.writeError(w, validationError("body must be {\"enabled\": true|false}"))
		return
	}
	if err := h.dash.Service.ToggleRecording(r.Context(), roomID, *body.Enabled, targetFromQuery(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListServers handles GET /api/servers?type=.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	t, err := ParseTypeFilter(r.URL.Query().Get("type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.dash.Servers.Filtered(t))
}

// ServerStats handles GET /api/servers/stats.
func (h *Handler) ServerStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.dash.Servers.Stats())
}

// RefreshServers handles POST /api/servers/refresh.
func (h *Handler) RefreshServers(w http.ResponseWriter, r *http.Request) {
	if err := h.dash.Servers.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SetVisibility handles PUT /api/visibility. Body: {"visible": false}.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Visible == nil {
		h.writeError(w, validationError("body must be {\"visible\": true|false}"))
		return
	}
	h.dash.Visibility.SetVisible(*body.Visible)
	h.log.Debug("visibility changed", slog.Bool("visible", *body.Visible))
	w.WriteHeader(http.StatusNoContent)
}

// Notifications handles GET /api/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	if h.notes == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.notes.Messages())
}

// Metrics handles GET /metrics, refreshing the snapshot gauges first.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler(func() {
		c := h.dash.Rooms.Counts()
		h.metrics.SetRoomCounts(c.Total, c.Streaming, c.Recording)
		h.metrics.SetServers(len(h.dash.Servers.Servers()))
	}).ServeHTTP(w, r)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func parseRoomFilter(r *http.Request) (RoomFilter, error) {
	q := r.URL.Query()
	t, err := ParseTypeFilter(q.Get("type"))
	if err != nil {
		return RoomFilter{}, err
	}
	st, err := ParseStatusFilter(q.Get("status"))
	if err != nil {
		return RoomFilter{}, err
	}
	return RoomFilter{Type: t, Status: st, Query: q.Get("q")}, nil
}

func parseRoomID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "roomId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError("invalid room id %q: must be a positive integer", raw)
	}
	return id, nil
}

func targetFromQuery(r *http.Request) Target {
	q := r.URL.Query()
	return Target{RecType: RecType(q.Get("recType")), RecName: q.Get("recName")}
}

// StatusFor maps an error kind to the local API status code.
func StatusFor(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthExpired:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUnreachable, KindServer, KindUnknownSchema, KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		var dashErr *Error
		if !errors.As(err, &dashErr) {
			h.log.Error("unclassified error", slog.String("error", err.Error()))
		}
	}
	h.writeJSON(w, status, errorBody{Error: err.Error(), Kind: KindOf(err).String()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}
