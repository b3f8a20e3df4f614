package api

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/stash/internal/bus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// EventService implements EventServer.
type EventService struct {
	bus         *bus.Bus
	sessionName string
	logger      *zap.Logger
}

// NewEventService creates a new event service.
func NewEventService(b *bus.Bus, sessionName string, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{bus: b, sessionName: sessionName, logger: logger}
}

// Watch streams every bus event whose kind starts with one of the requested
// prefixes until the client goes away.
func (s *EventService) Watch(req *WatchRequest, stream grpc.ServerStreamingServer[Event]) error {
	ch, unsub := s.bus.Subscribe("", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if !matches(req.Prefixes, evt.Kind) {
				continue
			}
			if err := stream.Send(s.envelope(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *EventService) envelope(evt bus.Event) *Event {
	out := &Event{
		ID:               uuid.New().String(),
		Session:          s.sessionName,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			s.logger.Warn("event payload not encodable", zap.String("kind", evt.Kind), zap.Error(err))
		} else {
			out.Payload = payload
		}
	}
	return out
}

func matches(prefixes []string, kind string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(kind, p) {
			return true
		}
	}
	return false
}
