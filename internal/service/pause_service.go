package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/backend"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// PauseService owns the Running/Paused state machine of a ticket's SLA clock
// and the paused-minutes accumulator.
type PauseService struct {
	store      *repository.Store
	backend    backend.Port
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// PauseDependencies bundles collaborators for the pause service.
type PauseDependencies struct {
	Store      *repository.Store
	Backend    backend.Port
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewPauseService constructs the service.
func NewPauseService(deps PauseDependencies) *PauseService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PauseService{
		store:      deps.Store,
		backend:    deps.Backend,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      clock,
	}
}

// WithStore returns a copy bound to the given repository bundle.
func (s *PauseService) WithStore(store *repository.Store) *PauseService {
	clone := *s
	clone.store = store
	return &clone
}

// PauseResult reports a pause attempt. IsNowPaused reflects the post-call
// state; Error is informational on no-ops, Success is authoritative.
type PauseResult struct {
	Success     bool
	WasPaused   bool
	IsNowPaused bool
	Error       string
}

// ResumeResult reports a resume attempt with the closed pause duration.
type ResumeResult struct {
	Success              bool
	WasPaused            bool
	PauseDurationMinutes int
	Error                string
}

// PauseStats is the read-only pause projection.
type PauseStats struct {
	IsPaused            bool
	PausedAt            *time.Time
	TotalPauseMinutes   int
	CurrentPauseMinutes int
	PauseReason         *domain.PauseReason
}

// ShouldBePaused decides whether the SLA clock should be paused for the
// ticket's current status and response state. Status pause takes priority
// over the awaiting-client condition when both apply.
func (s *PauseService) ShouldBePaused(ctx context.Context, ticket *domain.Ticket) (bool, domain.PauseReason, error) {
	config, err := s.store.Settings.StatusPauseConfig(ctx, ticket.StatusID)
	if err != nil {
		return false, "", err
	}
	if config != nil && config.PausesSLA {
		return true, domain.PauseReasonStatus, nil
	}
	if ticket.ResponseState == domain.ResponseStateAwaitingClient {
		settings, err := s.store.Settings.Settings(ctx)
		if err != nil {
			return false, "", err
		}
		if settings.PauseOnAwaitingClient {
			return true, domain.PauseReasonAwaitingClient, nil
		}
	}
	return false, "", nil
}

// Pause stops the SLA clock. Pausing an already-paused ticket is a
// successful no-op that does not re-stamp the pause instant.
func (s *PauseService) Pause(ctx context.Context, ticketID string, reason domain.PauseReason, actorID *string) (*PauseResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &PauseResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	return s.pauseTicket(ctx, ticket, reason, actorID)
}

func (s *PauseService) pauseTicket(ctx context.Context, ticket *domain.Ticket, reason domain.PauseReason, actorID *string) (*PauseResult, error) {
	if ticket.SLAPolicyID == nil {
		return &PauseResult{Success: true, Error: "No SLA policy attached"}, nil
	}
	if ticket.SLAPausedAt != nil {
		return &PauseResult{Success: true, WasPaused: true, IsNowPaused: true, Error: "SLA already paused"}, nil
	}

	now := s.clock()
	ticket.SLAPausedAt = &now
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionPaused, actorID,
		map[string]any{"sla_paused_at": nil},
		map[string]any{"sla_paused_at": now, "reason": reason})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.backend.Pause(ctx, ticket.ID); err != nil {
		s.logger.Warn("backend pause failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAPaused,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.SLAPausedPayload{Reason: reason},
	})
	return &PauseResult{Success: true, IsNowPaused: true}, nil
}

// Resume restarts the SLA clock, adding the closed pause's whole minutes to
// the accumulator. Resuming a running ticket is a successful no-op.
func (s *PauseService) Resume(ctx context.Context, ticketID string, actorID *string) (*ResumeResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &ResumeResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	return s.resumeTicket(ctx, ticket, actorID)
}

func (s *PauseService) resumeTicket(ctx context.Context, ticket *domain.Ticket, actorID *string) (*ResumeResult, error) {
	if ticket.SLAPolicyID == nil {
		return &ResumeResult{Success: true, Error: "No SLA policy attached"}, nil
	}
	if ticket.SLAPausedAt == nil {
		return &ResumeResult{Success: true, Error: "SLA not paused"}, nil
	}

	now := s.clock()
	pausedAt := *ticket.SLAPausedAt
	duration := wholeMinutes(now.Sub(pausedAt))
	if duration < 0 {
		duration = 0
	}
	previousTotal := ticket.SLATotalPauseMinutes
	ticket.SLATotalPauseMinutes += duration
	ticket.SLAPausedAt = nil
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionResumed, actorID,
		map[string]any{"sla_paused_at": pausedAt, "sla_total_pause_minutes": previousTotal},
		map[string]any{"sla_paused_at": nil, "sla_total_pause_minutes": ticket.SLATotalPauseMinutes})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.backend.Resume(ctx, ticket.ID); err != nil {
		s.logger.Warn("backend resume failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAResumed,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.SLAResumedPayload{
			PauseDurationMinutes: duration,
			TotalPauseMinutes:    ticket.SLATotalPauseMinutes,
		},
	})
	return &ResumeResult{Success: true, WasPaused: true, PauseDurationMinutes: duration}, nil
}

// HandleStatusChange re-evaluates the pause state after a status transition.
// The resume path is skipped when the awaiting-client condition still
// requires pausing on its own.
func (s *PauseService) HandleStatusChange(ctx context.Context, ticketID, oldStatusID, newStatusID string, actorID *string) error {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	// Evaluate under the new status even when the caller's write has not
	// landed on this row yet.
	ticket.StatusID = newStatusID
	return s.converge(ctx, ticket, actorID)
}

// HandleResponseStateChange re-evaluates the pause state after a response
// state transition such as entering or leaving awaiting-client.
func (s *PauseService) HandleResponseStateChange(ctx context.Context, ticketID string, oldState, newState domain.ResponseState, actorID *string) error {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	ticket.ResponseState = newState
	return s.converge(ctx, ticket, actorID)
}

// SyncPauseState reconciles the stored pause state with the state derived
// from current status, response state and tenant settings. Idempotent;
// callers invoke it after any ambiguous external change.
func (s *PauseService) SyncPauseState(ctx context.Context, ticketID string) error {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	return s.converge(ctx, ticket, nil)
}

func (s *PauseService) converge(ctx context.Context, ticket *domain.Ticket, actorID *string) error {
	if ticket.SLAPolicyID == nil {
		return nil
	}
	desired, reason, err := s.ShouldBePaused(ctx, ticket)
	if err != nil {
		return err
	}
	switch {
	case desired && ticket.SLAPausedAt == nil:
		_, err = s.pauseTicket(ctx, ticket, reason, actorID)
	case !desired && ticket.SLAPausedAt != nil:
		_, err = s.resumeTicket(ctx, ticket, actorID)
	}
	return err
}

// Stats returns the read-only pause projection. TotalPauseMinutes excludes
// the still-open pause, which is reported separately.
func (s *PauseService) Stats(ctx context.Context, ticketID string) (*PauseStats, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	stats := &PauseStats{
		IsPaused:          ticket.SLAPausedAt != nil,
		PausedAt:          ticket.SLAPausedAt,
		TotalPauseMinutes: ticket.SLATotalPauseMinutes,
	}
	if ticket.SLAPausedAt != nil {
		if open := wholeMinutes(s.clock().Sub(*ticket.SLAPausedAt)); open > 0 {
			stats.CurrentPauseMinutes = open
		}
		_, reason, err := s.ShouldBePaused(ctx, ticket)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			stats.PauseReason = &reason
		}
	}
	return stats, nil
}
