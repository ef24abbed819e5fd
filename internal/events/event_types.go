package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSLAStarted            EventType = "sla_started"
	EventSLAPaused             EventType = "sla_paused"
	EventSLAResumed            EventType = "sla_resumed"
	EventSLAResponseRecorded   EventType = "sla_response_recorded"
	EventSLAResolutionRecorded EventType = "sla_resolution_recorded"
	EventSLAEscalated          EventType = "sla_escalated"
	EventSLABreached           EventType = "sla_breached"
	EventSLAPolicyChanged      EventType = "sla_policy_changed"
)

// Event represents an SLA transition emitted by the engine. ActorID is nil
// for system-initiated transitions (scheduled wake-ups).
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	ActorID   *string     `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SLAStartedPayload payload.
type SLAStartedPayload struct {
	PolicyID        string     `json:"policy_id"`
	ResponseDueAt   *time.Time `json:"response_due_at,omitempty"`
	ResolutionDueAt *time.Time `json:"resolution_due_at,omitempty"`
}

// SLAPausedPayload payload.
type SLAPausedPayload struct {
	Reason domain.PauseReason `json:"reason"`
}

// SLAResumedPayload payload.
type SLAResumedPayload struct {
	PauseDurationMinutes int `json:"pause_duration_minutes"`
	TotalPauseMinutes    int `json:"total_pause_minutes"`
}

// SLAOutcomePayload covers response and resolution recordings.
type SLAOutcomePayload struct {
	RecordedAt time.Time `json:"recorded_at"`
	Met        bool      `json:"met"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	Level         int     `json:"level"`
	ManagerUserID *string `json:"manager_user_id,omitempty"`
	ManagerName   *string `json:"manager_name,omitempty"`
	NotifyEmail   bool    `json:"notify_email"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	Target string    `json:"target"` // "response" or "resolution"
	DueAt  time.Time `json:"due_at"`
}

// SLAPolicyChangedPayload payload.
type SLAPolicyChangedPayload struct {
	OldPolicyID *string `json:"old_policy_id,omitempty"`
	NewPolicyID *string `json:"new_policy_id,omitempty"`
}
