package dto

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SLAStatusResponse is the read-only status projection for a ticket.
type SLAStatusResponse struct {
	Status                     domain.SLAStatus `json:"status"`
	ResponseRemainingMinutes   *int             `json:"response_remaining_minutes,omitempty"`
	ResolutionRemainingMinutes *int             `json:"resolution_remaining_minutes,omitempty"`
	TotalPauseMinutes          int              `json:"total_pause_minutes"`
	PausedAt                   *time.Time       `json:"paused_at,omitempty"`
	EscalationLevel            *int             `json:"escalation_level,omitempty"`
	Escalated                  bool             `json:"escalated"`
}

// SyncResponse reports a pause reconciliation.
type SyncResponse struct {
	Synced   bool `json:"synced"`
	IsPaused bool `json:"is_paused"`
}
