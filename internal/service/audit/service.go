// internal/service/audit/service.go
package audit

import (
	"context"
	"time"

	"telecrm-service/internal/queue"

	"go.uber.org/zap"
)

// EventType identifies what the engine did to a lead.
type EventType string

const (
	EventAllocated     EventType = "Allocated"
	EventReassigned    EventType = "Reassigned"
	EventAutoAssigned  EventType = "AutoAssigned"
	EventRedistributed EventType = "Redistributed"
	EventStatusChanged EventType = "StatusChanged"
	EventReactivated   EventType = "Reactivated"
)

// Event is an engine mutation emitted for external logging. The engine does
// not persist these beyond the in-record assignment history.
type Event struct {
	LeadID    int64
	EventType EventType
	ActorID   int64
	Timestamp time.Time
}

// Emitter is what the engine sees; emission failures must never fail the
// mutation they describe.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

type producer interface {
	PublishLeadEvent(ctx context.Context, payload queue.LeadEventPayload) error
}

// Service publishes engine events to the broker and mirrors them to the log.
// With no broker configured it is log-only.
type Service struct {
	producer producer
	logger   *zap.Logger
}

func NewService(p producer, logger *zap.Logger) *Service {
	return &Service{producer: p, logger: logger}
}

func (s *Service) Emit(ctx context.Context, event Event) {
	s.logger.Info("lead event",
		zap.Int64("lead_id", event.LeadID),
		zap.String("event_type", string(event.EventType)),
		zap.Int64("actor_id", event.ActorID),
		zap.Time("timestamp", event.Timestamp),
	)

	if s.producer == nil {
		return
	}

	payload := queue.LeadEventPayload{
		LeadID:    event.LeadID,
		EventType: string(event.EventType),
		ActorID:   event.ActorID,
		Timestamp: event.Timestamp,
	}

	if err := s.producer.PublishLeadEvent(ctx, payload); err != nil {
		s.logger.Warn("failed to publish lead event",
			zap.Int64("lead_id", event.LeadID),
			zap.Error(err),
		)
	}
}
