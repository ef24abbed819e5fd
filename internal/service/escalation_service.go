package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/businesshours"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// EscalationService evaluates elapsed-percentage thresholds and performs
// multi-level escalation exactly once per level.
type EscalationService struct {
	store      *repository.Store
	resolver   *PolicyResolver
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	Store      *repository.Store
	Resolver   *PolicyResolver
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &EscalationService{
		store:      deps.Store,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		clock:      clock,
	}
}

// WithStore returns a copy bound to the given repository bundle.
func (s *EscalationService) WithStore(store *repository.Store) *EscalationService {
	clone := *s
	clone.store = store
	return &clone
}

// NotificationsSent tracks which channels an escalation attempted.
type NotificationsSent struct {
	InApp bool
	Email bool
}

// EscalateResult reports an escalation attempt.
type EscalateResult struct {
	Success           bool
	EscalationLevel   int
	ManagerID         *string
	ManagerName       *string
	ResourceAdded     bool
	NotificationsSent NotificationsSent
	Error             string
}

// CheckEscalationNeeded returns the highest level in 1..3 whose configured
// threshold the elapsed percentage has reached (inclusive) and that exceeds
// the ticket's current level. 0 means no escalation is due.
func (s *EscalationService) CheckEscalationNeeded(ctx context.Context, ticket *domain.Ticket, elapsedPercent float64) (int, error) {
	if ticket.SLAPolicyID == nil || ticket.PriorityID == nil {
		return 0, nil
	}
	resolved, err := s.resolver.ResolveByPolicy(ctx, *ticket.SLAPolicyID, ticket.PriorityID)
	if err != nil {
		return 0, err
	}
	if resolved == nil {
		return 0, nil
	}
	return qualifyingLevel(resolved.Target, ticket.CurrentEscalationLevel(), elapsedPercent), nil
}

func qualifyingLevel(target *domain.SLATarget, currentLevel int, elapsedPercent float64) int {
	best := 0
	for level := 1; level <= 3; level++ {
		threshold := target.ThresholdForLevel(level)
		if threshold == nil {
			continue
		}
		if elapsedPercent >= float64(*threshold) && level > currentLevel {
			best = level
		}
	}
	return best
}

// ManagerForTicket resolves the escalation manager configured for the
// ticket's board at a level, or nil when the ticket has no board or no
// manager is configured.
func (s *EscalationService) ManagerForTicket(ctx context.Context, ticket *domain.Ticket, level int) (*domain.EscalationManagerConfig, error) {
	if ticket.BoardID == nil {
		return nil, nil
	}
	manager, err := s.store.EscalationManagers.GetForBoardLevel(ctx, *ticket.BoardID, level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return manager, nil
}

// Escalate raises the ticket to the given level: assigns the configured
// manager as a resource, dispatches notifications on the manager's channels
// and appends an audit entry. Escalating to a level at or below the current
// one is a successful no-op so retries stay idempotent; a missing manager
// never blocks the level transition.
func (s *EscalationService) Escalate(ctx context.Context, ticketID string, level int, actorID *string) (*EscalateResult, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &EscalateResult{Success: false, Error: errTicketNotFound}, nil
		}
		return nil, err
	}
	if ticket.CurrentEscalationLevel() >= level {
		return &EscalateResult{
			Success:         true,
			EscalationLevel: ticket.CurrentEscalationLevel(),
			Error:           "Ticket already at or above this escalation level",
		}, nil
	}

	result := &EscalateResult{Success: true, EscalationLevel: level}

	manager, err := s.ManagerForTicket(ctx, ticket, level)
	if err != nil {
		return nil, err
	}
	if manager != nil {
		result.ManagerID = &manager.ManagerUserID
		result.ManagerName = &manager.ManagerName

		assigned, err := s.store.Resources.Exists(ctx, ticket.ID, manager.ManagerUserID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			if err := s.store.Resources.Create(ctx, &domain.TicketResource{
				ID:       uuid.NewString(),
				TicketID: ticket.ID,
				UserID:   manager.ManagerUserID,
				Role:     domain.ResourceRoleEscalationManager,
			}); err != nil {
				return nil, err
			}
			result.ResourceAdded = true
		}

		if manager.NotifyInApp {
			if err := s.store.Notifications.Create(ctx, &domain.InternalNotification{
				ID:       uuid.NewString(),
				UserID:   manager.ManagerUserID,
				TicketID: ticket.ID,
				Kind:     domain.NotificationKindEscalation,
				Title:    fmt.Sprintf("Ticket escalated to level %d", level),
				Body:     fmt.Sprintf("Ticket %s reached escalation level %d and requires attention.", ticket.ID, level),
			}); err != nil {
				return nil, err
			}
			result.NotificationsSent.InApp = true
		}
		result.NotificationsSent.Email = manager.NotifyEmail
	}

	oldLevel := ticket.EscalationLevel
	entry := newAuditEntry(ticket.ID, domain.AuditActionEscalated, actorID,
		map[string]any{"escalation_level": oldLevel, "escalated": ticket.Escalated},
		map[string]any{
			"escalation_level": level,
			"escalated":        true,
			"manager_user_id":  result.ManagerID,
			"resource_added":   result.ResourceAdded,
		})
	if err := s.store.Audit.Create(ctx, entry); err != nil {
		return nil, err
	}

	ticket.EscalationLevel = intPtr(level)
	ticket.Escalated = true
	if err := s.store.Tickets.UpdateSLA(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket escalated",
		zap.String("ticket_id", ticket.ID),
		zap.Int("level", level),
		zap.Bool("resource_added", result.ResourceAdded))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventSLAEscalated,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.SLAEscalatedPayload{
			Level:         level,
			ManagerUserID: result.ManagerID,
			ManagerName:   result.ManagerName,
			NotifyEmail:   result.NotificationsSent.Email,
		},
	})
	return result, nil
}

// CheckAndEscalate handles a delivered escalation wake-up: it recomputes the
// pause-adjusted elapsed percentage against the resolution target under the
// policy's business hours and escalates when a threshold is due. Wake-ups
// are scheduled on the wall clock, so under a business hours schedule they
// arrive before the threshold; the returned instant, when non-nil, is when
// the check must run again.
func (s *EscalationService) CheckAndEscalate(ctx context.Context, ticketID string) (*time.Time, error) {
	ticket, err := s.store.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if ticket.SLAPolicyID == nil || ticket.SLAStartedAt == nil || ticket.SLAResolutionAt != nil {
		return nil, nil
	}
	if !ticket.SLARunning() {
		// Elapsed time does not grow while paused. The pause flag normally
		// defers delivery before this point; covering it here keeps the
		// wake-up alive when the flag was lost out of band.
		retry := s.clock()
		return &retry, nil
	}

	resolved, err := s.resolver.ResolveByPolicy(ctx, *ticket.SLAPolicyID, ticket.PriorityID)
	if err != nil {
		return nil, err
	}
	if resolved == nil || resolved.Target.ResolutionTimeMinutes <= 0 {
		return nil, nil
	}

	now := s.clock()
	schedule := resolved.EffectiveSchedule()
	elapsed := businesshours.ElapsedPercent(
		schedule,
		*ticket.SLAStartedAt,
		now,
		ticket.SLATotalPauseMinutes,
		resolved.Target.ResolutionTimeMinutes,
	)
	level := qualifyingLevel(resolved.Target, ticket.CurrentEscalationLevel(), elapsed)
	if level == 0 {
		elapsedMinutes := businesshours.ElapsedMinutes(schedule, *ticket.SLAStartedAt, now) - ticket.SLATotalPauseMinutes
		if elapsedMinutes < 0 {
			elapsedMinutes = 0
		}
		return nextThresholdInstant(schedule, resolved.Target, ticket.CurrentEscalationLevel(), elapsedMinutes, now), nil
	}
	_, err = s.Escalate(ctx, ticketID, level, nil)
	return nil, err
}

// nextThresholdInstant computes when the lowest outstanding threshold above
// currentLevel will be reached, in business time from now. Nil means no
// threshold remains or the schedule cannot supply the minutes.
func nextThresholdInstant(schedule *domain.BusinessHoursSchedule, target *domain.SLATarget, currentLevel, elapsedMinutes int, now time.Time) *time.Time {
	for level := currentLevel + 1; level <= 3; level++ {
		pct := target.ThresholdForLevel(level)
		if pct == nil {
			continue
		}
		deficit := target.ResolutionTimeMinutes*(*pct)/100 - elapsedMinutes
		if deficit < 1 {
			deficit = 1
		}
		if at, ok := businesshours.AddMinutes(schedule, now, deficit); ok {
			return &at
		}
		return nil
	}
	return nil
}
