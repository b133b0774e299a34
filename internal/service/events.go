package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sena-attendance-api/internal/observability"
)

// Domain event types.
const (
	EventUserRegistered      = "user.registered"
	EventUserUpdated         = "user.updated"
	EventUserDeleted         = "user.deleted"
	EventCourseCreated       = "course.created"
	EventCourseUpdated       = "course.updated"
	EventCourseDeleted       = "course.deleted"
	EventCourseRosterChanged = "course.roster_changed"
	EventAttendanceRecorded  = "attendance.recorded"
	EventAttendanceUpdated   = "attendance.updated"
	EventAttendanceDeleted   = "attendance.deleted"
	EventEvaluationCreated   = "evaluation.created"
	EventEvaluationUpdated   = "evaluation.updated"
	EventEvaluationDeleted   = "evaluation.deleted"
	EventGradeUpserted       = "grade.upserted"
	EventEvidenceSubmitted   = "grade.evidence_submitted"
)

// Event is the JSON document published for every successful mutation.
type Event struct {
	Type       string                 `json:"type"`
	ActorID    uint                   `json:"actor_id"`
	EntityID   uint                   `json:"entity_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// EventPublisher hands domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEventPublisher publishes on "<subject>.<event type>". A nil connection
// or empty subject yields a publisher that drops every event.
func NewEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	return &natsPublisher{
		conn:    conn,
		subject: strings.Trim(strings.TrimSpace(subject), "."),
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		now:     time.Now,
	}
}

func (p *natsPublisher) Publish(_ context.Context, event Event) {
	if p == nil || p.conn == nil || p.subject == "" {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to encode event")
		observability.EventsPublished().WithLabelValues(event.Type, "error").Inc()
		return
	}

	if err := p.conn.Publish(p.subject+"."+event.Type, payload); err != nil {
		p.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish event")
		observability.EventsPublished().WithLabelValues(event.Type, "error").Inc()
		return
	}
	observability.EventsPublished().WithLabelValues(event.Type, "ok").Inc()
}

func publishEvent(ctx context.Context, publisher EventPublisher, event Event) {
	if publisher == nil {
		return
	}
	publisher.Publish(ctx, event)
}
