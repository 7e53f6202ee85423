package dashboard

import (
	"context"
	"fmt"
	"log/slog"
)

// Service runs the room and server mutation workflows: call the aggregator,
// report the outcome through the notifier, then refresh the affected store.
type Service struct {
	client   *Client
	rooms    *RoomStore
	servers  *ServerStore
	notifier Notifier
	log      *slog.Logger
}

// NewService wires the workflows to their collaborators.
func NewService(client *Client, rooms *RoomStore, servers *ServerStore, notifier Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		client:   client,
		rooms:    rooms,
		servers:  servers,
		notifier: notifier,
		log:      log.With(slog.String("component", "service")),
	}
}

// AddRoom adds one room.
func (s *Service) AddRoom(ctx context.Context, roomID int64, opts AddRoomOptions) error {
	if err := s.client.AddRoom(ctx, roomID, opts); err != nil {
		return s.fail("add room", err)
	}
	s.notifier.Success(fmt.Sprintf("room %d added", roomID))
	s.refreshRooms(ctx)
	return nil
}

// AddRoomsBatch adds several rooms.
func (s *Service) AddRoomsBatch(ctx context.Context, rooms []RoomRequest, target Target) error {
	if err := s.client.AddRoomsBatch(ctx, rooms, target); err != nil {
		return s.fail("batch add rooms", err)
	}
	s.notifier.Success(fmt.Sprintf("%d rooms added", len(rooms)))
	s.refreshRooms(ctx)
	return nil
}

// DeleteRoom removes one room.
func (s *Service) DeleteRoom(ctx context.Context, roomID int64, target Target) error {
	if err := s.client.DeleteRoom(ctx, roomID, target); err != nil {
		return s.fail("delete room", err)
	}
	s.notifier.Success(fmt.Sprintf("room %d deleted", roomID))
	s.refreshRooms(ctx)
	return nil
}

// ToggleRecording starts or stops recording a room.
func (s *Service) ToggleRecording(ctx context.Context, roomID int64, enabled bool, target Target) error {
	action := "stop recording"
	if enabled {
		action = "start recording"
	}
	if err := s.client.ToggleRecording(ctx, roomID, enabled, target); err != nil {
		return s.fail(action, err)
	}
	s.notifier.Success(fmt.Sprintf("%s room %d", action, roomID))
	s.refreshRooms(ctx)
	return nil
}

// AddServer registers one recorder.
func (s *Service) AddServer(ctx context.Context, spec ServerSpec) error {
	if err := s.client.AddServer(ctx, spec); err != nil {
		return s.fail("add server", err)
	}
	s.notifier.Success(fmt.Sprintf("server %s added", spec.RecName))
	s.refreshServers(ctx)
	return nil
}

// AddServersBatch registers several recorders.
func (s *Service) AddServersBatch(ctx context.Context, specs []ServerSpec) error {
	if err := s.client.AddServersBatch(ctx, specs); err != nil {
		return s.fail("batch add servers", err)
	}
	s.notifier.Success(fmt.Sprintf("%d servers added", len(specs)))
	s.refreshServers(ctx)
	return nil
}

// DeleteServer unregisters one recorder.
func (s *Service) DeleteServer(ctx context.Context, ref ServerRef) error {
	if err := s.client.DeleteServer(ctx, ref); err != nil {
		return s.fail("delete server", err)
	}
	s.notifier.Success(fmt.Sprintf("server %s deleted", ref.RecName))
	s.refreshServers(ctx)
	return nil
}

// DeleteServers unregisters several recorders.
func (s *Service) DeleteServers(ctx context.Context, refs []ServerRef) error {
	if err := s.client.DeleteServers(ctx, refs); err != nil {
		return s.fail("batch delete servers", err)
	}
	s.notifier.Success(fmt.Sprintf("%d servers deleted", len(refs)))
	s.refreshServers(ctx)
	return nil
}

// fail reports err as "{action} failed: {detail}". AuthExpired was already
// reported by the session when the 401 arrived.
func (s *Service) fail(action string, err error) error {
	s.log.Warn(action+" failed", slog.String("kind", KindOf(err).String()), slog.String("error", err.Error()))
	if !userNotified(err) {
		s.notifier.Error(Describe(action, err))
	}
	return err
}

// The refresh after a mutation goes through the normal throttle; its
// failure is already recorded by the store.
func (s *Service) refreshRooms(ctx context.Context) {
	if s.rooms != nil {
		_ = s.rooms.Refresh(ctx)
	}
}

func (s *Service) refreshServers(ctx context.Context) {
	if s.servers != nil {
		_ = s.servers.Refresh(ctx)
	}
}
