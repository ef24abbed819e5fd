package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/backend"
	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

const errTicketNotFound = "Ticket not found"

// TimerService starts SLA tracking, records response/resolution outcomes and
// projects the combined SLA status.
type TimerService struct {
	store      *repository.Store
	resolver   *PolicyResolver
	backend    backend.Port
	dispatcher events.Dispatcher
	logger     *zap.Logger
	atRiskPct  int
	clock      func() time.Time
}

// TimerDependencies bundles collaborators for the timer service.
type TimerDependencies struct {
	Store      *repository.Store
	Resolver   *PolicyResolver
	Backend    backend.Port
	Dispatcher events.Dispatcher
	Logger     *zap.Logger

	// AtRiskThresholdPercent marks a target at risk when remaining time
	// drops to this share of the target. Defaults to 25.
	AtRiskThresholdPercent int
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewTimerService constructs the service.
func NewTimerService(deps TimerDependencies) *TimerService {
	atRisk := deps.AtRiskThresholdPercent
	if atRisk <= 0 {
		atRisk = 25
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TimerService{
		store:      deps.Store,
		resolver:   deps.Resolver,
		backend:    deps.Backend,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		atRiskPct:  atRisk,
		clock:      clock,
	}
}

// WithStore returns a copy bound to the given repository bundle, typically a
// transaction-scoped one from Store.WithTx.
func (s *TimerService) WithStore(store *repository.Store) *TimerService {
	clone := *s
	clone.store = store
	return &clone
}

// StartResult reports the outcome of starting SLA tracking.
type StartResult struct {
	Success         bool
	Applicable      bool
	PolicyID        *string
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	Error           string
}

// RecordResult reports a response/resolution recording. Met is nil when the
// event was already recorded or no target applies.
type RecordResult struct {
	Success bool
	Met     *bool
	Error   string
}

// TimerStatus is the externally consumed read model combining timer, pause
// and escalation state.
type TimerStatus struct {
	Status                     domain.SLAStatus
	ResponseRemainingMinutes   *int
	ResolutionRemainingMinutes *int
	TotalPauseMinutes          int
	PausedAt                   *time.Time
	EscalationLevel            *int
	Escalated                  bool
}

// Start begins SLA tracking for a ticket. Re-invoking Start on a ticket whose
// SLA already started is a caller error; policy changes go through
// HandlePolicyChange instead.
func (s *TimerService) Start(ctx context.Context, ticketID string, startedAt time.Time, actorID *string) (*StartResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &StartResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	if ticket.SLAStartedAt != nil {
		return &StartResult{Success: false, Error: "SLA already started for this ticket"}, nil
	}
	return s.start(ctx, ticket, startedAt, actorID)
}

func (s *TimerService) start(ctx context.Context, ticket *domain.Ticket, startedAt time.Time, actorID *string) (*StartResult, error) {
	resolved, err := s.resolver.Resolve(ctx, ticket.ClientID, ticket.PriorityID)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return &StartResult{Success: true, Applicable: false}, nil
	}

	schedule := resolved.EffectiveSchedule()
	var responseDue, resolutionDue *time.Time
	if resolved.Target.ResponseTimeMinutes > 0 {
		if due, ok := businesshours.AddMinutes(schedule, startedAt, resolved.Target.ResponseTimeMinutes); ok {
			responseDue = &due
		}
	}
	if resolved.Target.ResolutionTimeMinutes > 0 {
		if due, ok := businesshours.AddMinutes(schedule, startedAt, resolved.Target.ResolutionTimeMinutes); ok {
			resolutionDue = &due
		}
	}

	ticket.SLAPolicyID = &resolved.Policy.ID
	ticket.SLAStartedAt = &startedAt
	ticket.SLAResponseDueAt = responseDue
	ticket.SLAResolutionDueAt = resolutionDue
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionStarted, actorID,
		map[string]any{"sla_policy_id": nil},
		map[string]any{
			"sla_policy_id":         resolved.Policy.ID,
			"sla_started_at":        startedAt,
			"sla_response_due_at":   responseDue,
			"sla_resolution_due_at": resolutionDue,
		})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.backend.StartTracking(ctx, backend.Tracking{
		TicketID:        ticket.ID,
		PolicyID:        resolved.Policy.ID,
		Target:          *resolved.Target,
		StartedAt:       startedAt,
		ResponseDueAt:   responseDue,
		ResolutionDueAt: resolutionDue,
	}); err != nil {
		// Scheduling failures must not block the state transition; the
		// reconciliation path can reschedule later.
		s.logger.Warn("backend start tracking failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAStarted,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.SLAStartedPayload{
			PolicyID:        resolved.Policy.ID,
			ResponseDueAt:   responseDue,
			ResolutionDueAt: resolutionDue,
		},
	})

	return &StartResult{
		Success:         true,
		Applicable:      true,
		PolicyID:        &resolved.Policy.ID,
		ResponseDueAt:   responseDue,
		ResolutionDueAt: resolutionDue,
	}, nil
}

// RecordFirstResponse records the first-response instant, idempotently. The
// effective due instant is the stored due date shifted by accumulated pause
// minutes; comparison is inclusive at the boundary.
func (s *TimerService) RecordFirstResponse(ctx context.Context, ticketID string, respondedAt time.Time, actorID *string) (*RecordResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &RecordResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	if ticket.SLAResponseAt != nil {
		return &RecordResult{Success: true, Error: "Response already recorded"}, nil
	}
	if ticket.SLAPolicyID == nil || ticket.SLAResponseDueAt == nil {
		return &RecordResult{Success: true}, nil
	}

	due := effectiveDue(*ticket.SLAResponseDueAt, ticket.SLATotalPauseMinutes)
	met := !respondedAt.After(due)
	ticket.SLAResponseAt = &respondedAt
	ticket.SLAResponseMet = &met
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionResponseRecorded, actorID,
		map[string]any{"sla_response_at": nil},
		map[string]any{"sla_response_at": respondedAt, "sla_response_met": met, "effective_due_at": due})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAResponseRecorded,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.SLAOutcomePayload{RecordedAt: respondedAt, Met: met},
	})
	return &RecordResult{Success: true, Met: &met}, nil
}

// RecordResolution records the resolution instant, idempotently, and
// completes backend tracking.
func (s *TimerService) RecordResolution(ctx context.Context, ticketID string, resolvedAt time.Time, actorID *string) (*RecordResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &RecordResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	if ticket.SLAResolutionAt != nil {
		return &RecordResult{Success: true, Error: "Resolution already recorded"}, nil
	}
	if ticket.SLAPolicyID == nil || ticket.SLAResolutionDueAt == nil {
		return &RecordResult{Success: true}, nil
	}

	due := effectiveDue(*ticket.SLAResolutionDueAt, ticket.SLATotalPauseMinutes)
	met := !resolvedAt.After(due)
	ticket.SLAResolutionAt = &resolvedAt
	ticket.SLAResolutionMet = &met
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionResolutionRecorded, actorID,
		map[string]any{"sla_resolution_at": nil},
		map[string]any{"sla_resolution_at": resolvedAt, "sla_resolution_met": met, "effective_due_at": due})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := s.backend.Complete(ctx, ticket.ID); err != nil {
		s.logger.Warn("backend complete failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAResolutionRecorded,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.SLAOutcomePayload{RecordedAt: resolvedAt, Met: met},
	})
	return &RecordResult{Success: true, Met: &met}, nil
}

// Status returns the combined SLA read model, or nil when the ticket does not
// exist or has no SLA policy attached. It performs no writes.
func (s *TimerService) Status(ctx context.Context, ticketID string) (*TimerStatus, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if ticket.SLAPolicyID == nil {
		return nil, nil
	}

	now := s.clock()
	status := &TimerStatus{
		TotalPauseMinutes: ticket.SLATotalPauseMinutes,
		PausedAt:          ticket.SLAPausedAt,
		EscalationLevel:   ticket.EscalationLevel,
		Escalated:         ticket.Escalated,
	}
	if ticket.SLAPausedAt != nil {
		if open := wholeMinutes(now.Sub(*ticket.SLAPausedAt)); open > 0 {
			status.TotalPauseMinutes += open
		}
	}

	var responseDue, resolutionDue *time.Time
	if ticket.SLAResponseAt == nil && ticket.SLAResponseDueAt != nil {
		due := effectiveDue(*ticket.SLAResponseDueAt, ticket.SLATotalPauseMinutes)
		responseDue = &due
		status.ResponseRemainingMinutes = intPtr(wholeMinutes(due.Sub(now)))
	}
	if ticket.SLAResolutionAt == nil && ticket.SLAResolutionDueAt != nil {
		due := effectiveDue(*ticket.SLAResolutionDueAt, ticket.SLATotalPauseMinutes)
		resolutionDue = &due
		status.ResolutionRemainingMinutes = intPtr(wholeMinutes(due.Sub(now)))
	}

	switch {
	case ticket.SLAPausedAt != nil:
		status.Status = domain.SLAStatusPaused
	case responseDue != nil && now.After(*responseDue):
		status.Status = domain.SLAStatusResponseBreached
	case resolutionDue != nil && now.After(*resolutionDue):
		status.Status = domain.SLAStatusResolutionBreached
	default:
		atRisk, err := s.anyTargetAtRisk(ctx, ticket, status)
		if err != nil {
			return nil, err
		}
		if atRisk {
			status.Status = domain.SLAStatusAtRisk
		} else {
			status.Status = domain.SLAStatusOnTrack
		}
	}
	return status, nil
}

func (s *TimerService) anyTargetAtRisk(ctx context.Context, ticket *domain.Ticket, status *TimerStatus) (bool, error) {
	if status.ResponseRemainingMinutes == nil && status.ResolutionRemainingMinutes == nil {
		return false, nil
	}
	resolved, err := s.resolver.ResolveByPolicy(ctx, *ticket.SLAPolicyID, ticket.PriorityID)
	if err != nil {
		return false, err
	}
	if resolved == nil {
		return false, nil
	}
	if status.ResponseRemainingMinutes != nil &&
		*status.ResponseRemainingMinutes <= resolved.Target.ResponseTimeMinutes*s.atRiskPct/100 {
		return true, nil
	}
	if status.ResolutionRemainingMinutes != nil &&
		*status.ResolutionRemainingMinutes <= resolved.Target.ResolutionTimeMinutes*s.atRiskPct/100 {
		return true, nil
	}
	return false, nil
}

// EvaluateBreach handles a delivered breach wake-up: when the target is still
// unrecorded and the pause-shifted effective due instant has passed, a breach
// event is published. A recorded outcome or a detached policy suppresses it.
// Wake-ups are scheduled at the unshifted due instant, so pause time accrued
// after scheduling makes them arrive early; the returned instant, when
// non-nil, is the shifted due the check must run again at.
func (s *TimerService) EvaluateBreach(ctx context.Context, ticketID string, kind backend.WakeupKind) (*time.Time, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if ticket.SLAPolicyID == nil {
		return nil, nil
	}

	var target string
	var recordedAt, dueAt *time.Time
	switch kind {
	case backend.WakeupResponseBreach:
		target, recordedAt, dueAt = "response", ticket.SLAResponseAt, ticket.SLAResponseDueAt
	case backend.WakeupResolutionBreach:
		target, recordedAt, dueAt = "resolution", ticket.SLAResolutionAt, ticket.SLAResolutionDueAt
	default:
		return nil, nil
	}
	if recordedAt != nil || dueAt == nil {
		return nil, nil
	}

	now := s.clock()
	pauseMinutes := ticket.SLATotalPauseMinutes
	if ticket.SLAPausedAt != nil {
		if open := wholeMinutes(now.Sub(*ticket.SLAPausedAt)); open > 0 {
			pauseMinutes += open
		}
	}
	due := effectiveDue(*dueAt, pauseMinutes)
	if !ticket.SLARunning() || !now.After(due) {
		return &due, nil
	}

	s.logger.Info("sla breached",
		zap.String("ticket_id", ticket.ID),
		zap.String("target", target),
		zap.Time("effective_due_at", due))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLABreached,
		TicketID: ticket.ID,
		Payload:  events.SLABreachedPayload{Target: target, DueAt: due},
	})
	return nil, nil
}

// HandlePolicyChange restarts SLA tracking from the change instant under the
// ticket's newly applicable policy. Pending backend work for the old policy
// is cancelled; recorded response/resolution outcomes are preserved, while
// pause accounting and escalation state reset with the fresh clock.
func (s *TimerService) HandlePolicyChange(ctx context.Context, ticketID string, actorID *string) (*StartResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &StartResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}

	oldPolicyID := ticket.SLAPolicyID
	if oldPolicyID != nil {
		if err := s.backend.Cancel(ctx, ticket.ID); err != nil {
			s.logger.Warn("backend cancel failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	now := s.clock()
	ticket.SLAPolicyID = nil
	ticket.SLAStartedAt = nil
	ticket.SLAResponseDueAt = nil
	ticket.SLAResolutionDueAt = nil
	ticket.SLAPausedAt = nil
	ticket.SLATotalPauseMinutes = 0
	ticket.EscalationLevel = nil
	ticket.Escalated = false

	result, err := s.start(ctx, ticket, now, actorID)
	if err != nil {
		return nil, err
	}
	if !result.Applicable {
		// No policy applies anymore; persist the cleared tracking state.
		if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
			return nil, err
		}
	}

	entry := newAuditEntry(ticket.ID, domain.AuditActionPolicyChanged, actorID,
		map[string]any{"sla_policy_id": oldPolicyID},
		map[string]any{"sla_policy_id": ticket.SLAPolicyID, "sla_started_at": ticket.SLAStartedAt})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAPolicyChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.SLAPolicyChangedPayload{OldPolicyID: oldPolicyID, NewPolicyID: ticket.SLAPolicyID},
	})
	return result, nil
}
