package backend

import (
	"context"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// Tracking describes one ticket's SLA tracking request handed to the durable
// backend when tracking starts.
type Tracking struct {
	TicketID        string
	PolicyID        string
	Target          domain.SLATarget
	StartedAt       time.Time
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
}

// Port is the contract the engine requires from the external durable
// execution system. Implementations own all scheduling, cancellation and
// timeout semantics; the engine only issues requests and reacts to delivered
// wake-ups.
type Port interface {
	StartTracking(ctx context.Context, tracking Tracking) error
	Pause(ctx context.Context, ticketID string) error
	Resume(ctx context.Context, ticketID string) error
	Complete(ctx context.Context, ticketID string) error
	Cancel(ctx context.Context, ticketID string) error
	Status(ctx context.Context, ticketID string) (string, error)
}

// WakeupKind labels scheduled wake-up deliveries.
type WakeupKind string

const (
	WakeupEscalationCheck  WakeupKind = "escalation_check"
	WakeupResponseBreach   WakeupKind = "response_breach"
	WakeupResolutionBreach WakeupKind = "resolution_breach"
)

// Wakeup is one due wake-up drained by the poller.
type Wakeup struct {
	TicketID string     `json:"ticket_id"`
	Kind     WakeupKind `json:"kind"`
	Level    int        `json:"level,omitempty"`
	DueAt    time.Time  `json:"due_at"`
}
