package domain

import "time"

// SLAAuditAction enumerates recorded SLA state transitions.
type SLAAuditAction string

const (
	AuditActionStarted            SLAAuditAction = "sla_started"
	AuditActionPaused             SLAAuditAction = "sla_paused"
	AuditActionResumed            SLAAuditAction = "sla_resumed"
	AuditActionResponseRecorded   SLAAuditAction = "sla_response_recorded"
	AuditActionResolutionRecorded SLAAuditAction = "sla_resolution_recorded"
	AuditActionEscalated          SLAAuditAction = "sla_escalated"
	AuditActionPolicyChanged      SLAAuditAction = "sla_policy_changed"
)

// SLAAuditEntry is an append-only record of one SLA state transition with
// before/after snapshots. Entries are never mutated or deleted.
type SLAAuditEntry struct {
	ID        string
	TicketID  string
	Action    SLAAuditAction
	ActorID   *string
	OldValue  map[string]any
	NewValue  map[string]any
	CreatedAt time.Time
}
