package domain

import "time"

// ResponseState tracks who the ticket is currently waiting on.
type ResponseState string

const (
	ResponseStateAwaitingAgent  ResponseState = "AWAITING_AGENT"
	ResponseStateAwaitingClient ResponseState = "AWAITING_CLIENT"
	ResponseStateResponded      ResponseState = "RESPONDED"
)

// PauseReason explains why an SLA clock is paused.
type PauseReason string

const (
	PauseReasonStatus         PauseReason = "status_pause"
	PauseReasonAwaitingClient PauseReason = "awaiting_client"
)

// SLAStatus is the discrete display status combining timer and pause state.
type SLAStatus string

const (
	SLAStatusOnTrack            SLAStatus = "on_track"
	SLAStatusAtRisk             SLAStatus = "at_risk"
	SLAStatusPaused             SLAStatus = "paused"
	SLAStatusResponseBreached   SLAStatus = "response_breached"
	SLAStatusResolutionBreached SLAStatus = "resolution_breached"
)

// Ticket carries the SLA-relevant subset of a support ticket. The CRUD
// lifecycle of the remaining ticket fields belongs to the surrounding
// ticketing service; this engine owns only the SLA fields.
type Ticket struct {
	ID            string
	ClientID      string
	BoardID       *string
	PriorityID    *string
	StatusID      string
	ResponseState ResponseState

	SLAPolicyID          *string
	SLAStartedAt         *time.Time
	SLAResponseDueAt     *time.Time
	SLAResponseAt        *time.Time
	SLAResponseMet       *bool
	SLAResolutionDueAt   *time.Time
	SLAResolutionAt      *time.Time
	SLAResolutionMet     *bool
	SLAPausedAt          *time.Time
	SLATotalPauseMinutes int
	EscalationLevel      *int
	Escalated            bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SLARunning reports whether the SLA clock is currently running.
func (t *Ticket) SLARunning() bool {
	return t.SLAPolicyID != nil && t.SLAPausedAt == nil
}

// CurrentEscalationLevel returns the escalation level treating unset as 0.
func (t *Ticket) CurrentEscalationLevel() int {
	if t.EscalationLevel == nil {
		return 0
	}
	return *t.EscalationLevel
}

// TicketResource links an additional user (e.g. an escalation manager) to a
// ticket.
type TicketResource struct {
	ID       string
	TicketID string
	UserID   string
	Role     string
	AddedAt  time.Time
}

// ResourceRoleEscalationManager marks resources added by the escalation
// service.
const ResourceRoleEscalationManager = "ESCALATION_MANAGER"
