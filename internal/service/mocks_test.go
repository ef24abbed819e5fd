package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/backend"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	updates int
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

// UpdateSLA copies only the SLA columns onto the stored row, mirroring the
// real UPDATE's column list.
func (f *fakeTicketRepo) UpdateSLA(_ context.Context, ticket *domain.Ticket) error {
	stored, ok := f.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	clone := *stored
	clone.SLAPolicyID = ticket.SLAPolicyID
	clone.SLAStartedAt = ticket.SLAStartedAt
	clone.SLAResponseDueAt = ticket.SLAResponseDueAt
	clone.SLAResponseAt = ticket.SLAResponseAt
	clone.SLAResponseMet = ticket.SLAResponseMet
	clone.SLAResolutionDueAt = ticket.SLAResolutionDueAt
	clone.SLAResolutionAt = ticket.SLAResolutionAt
	clone.SLAResolutionMet = ticket.SLAResolutionMet
	clone.SLAPausedAt = ticket.SLAPausedAt
	clone.SLATotalPauseMinutes = ticket.SLATotalPauseMinutes
	clone.EscalationLevel = ticket.EscalationLevel
	clone.Escalated = ticket.Escalated
	f.tickets[ticket.ID] = &clone
	f.updates++
	return nil
}

type fakePolicyRepo struct {
	policies       map[string]*domain.SLAPolicy
	clientPolicies map[string]string
	targets        map[string]*domain.SLATarget
}

func targetKey(policyID, priorityID string) string {
	return policyID + "|" + priorityID
}

func (f *fakePolicyRepo) GetByID(_ context.Context, id string) (*domain.SLAPolicy, error) {
	policy, ok := f.policies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *policy
	return &clone, nil
}

func (f *fakePolicyRepo) GetForClient(ctx context.Context, clientID string) (*domain.SLAPolicy, error) {
	policyID, ok := f.clientPolicies[clientID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return f.GetByID(ctx, policyID)
}

func (f *fakePolicyRepo) GetTarget(_ context.Context, policyID, priorityID string) (*domain.SLATarget, error) {
	target, ok := f.targets[targetKey(policyID, priorityID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *target
	return &clone, nil
}

type fakeScheduleRepo struct {
	schedules map[string]*domain.BusinessHoursSchedule
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, id string) (*domain.BusinessHoursSchedule, error) {
	schedule, ok := f.schedules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return schedule, nil
}

type fakeManagerRepo struct {
	managers map[string]*domain.EscalationManagerConfig
}

func managerKey(boardID string, level int) string {
	return fmt.Sprintf("%s|%d", boardID, level)
}

func (f *fakeManagerRepo) GetForBoardLevel(_ context.Context, boardID string, level int) (*domain.EscalationManagerConfig, error) {
	manager, ok := f.managers[managerKey(boardID, level)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *manager
	return &clone, nil
}

type fakeSettingsRepo struct {
	statusPause map[string]bool
	settings    *domain.SLASettings
}

func (f *fakeSettingsRepo) StatusPauseConfig(_ context.Context, statusID string) (*domain.StatusPauseConfig, error) {
	pauses, ok := f.statusPause[statusID]
	if !ok {
		return nil, nil
	}
	return &domain.StatusPauseConfig{StatusID: statusID, PausesSLA: pauses}, nil
}

func (f *fakeSettingsRepo) Settings(_ context.Context) (domain.SLASettings, error) {
	if f.settings == nil {
		return domain.DefaultSLASettings(), nil
	}
	return *f.settings, nil
}

type fakeAuditRepo struct {
	entries []domain.SLAAuditEntry
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.SLAAuditEntry) error {
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.SLAAuditEntry, error) {
	var out []domain.SLAAuditEntry
	for _, entry := range f.entries {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) countByAction(action domain.SLAAuditAction) int {
	count := 0
	for _, entry := range f.entries {
		if entry.Action == action {
			count++
		}
	}
	return count
}

type fakeResourceRepo struct {
	existing map[string]bool
	created  []domain.TicketResource
}

func resourceKey(ticketID, userID string) string {
	return ticketID + "|" + userID
}

func (f *fakeResourceRepo) Exists(_ context.Context, ticketID, userID string) (bool, error) {
	return f.existing[resourceKey(ticketID, userID)], nil
}

func (f *fakeResourceRepo) Create(_ context.Context, resource *domain.TicketResource) error {
	f.existing[resourceKey(resource.TicketID, resource.UserID)] = true
	f.created = append(f.created, *resource)
	return nil
}

type fakeNotificationRepo struct {
	created []domain.InternalNotification
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *domain.InternalNotification) error {
	f.created = append(f.created, *notification)
	return nil
}

type fakeBackend struct {
	started   []backend.Tracking
	paused    []string
	resumed   []string
	completed []string
	cancelled []string
	startErr  error
}

func (f *fakeBackend) StartTracking(_ context.Context, tracking backend.Tracking) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, tracking)
	return nil
}

func (f *fakeBackend) Pause(_ context.Context, ticketID string) error {
	f.paused = append(f.paused, ticketID)
	return nil
}

func (f *fakeBackend) Resume(_ context.Context, ticketID string) error {
	f.resumed = append(f.resumed, ticketID)
	return nil
}

func (f *fakeBackend) Complete(_ context.Context, ticketID string) error {
	f.completed = append(f.completed, ticketID)
	return nil
}

func (f *fakeBackend) Cancel(_ context.Context, ticketID string) error {
	f.cancelled = append(f.cancelled, ticketID)
	return nil
}

func (f *fakeBackend) Status(_ context.Context, _ string) (string, error) {
	return "none", nil
}

// fixture wires the fakes into a Store and exposes the seeded state for
// assertions. now is mutable so tests can advance the injected clock.
type fixture struct {
	tickets       *fakeTicketRepo
	policies      *fakePolicyRepo
	schedules     *fakeScheduleRepo
	managers      *fakeManagerRepo
	settings      *fakeSettingsRepo
	audit         *fakeAuditRepo
	resources     *fakeResourceRepo
	notifications *fakeNotificationRepo
	backend       *fakeBackend
	dispatcher    events.Dispatcher
	published     []events.Event
	store         *repository.Store
	logger        *zap.Logger

	now time.Time
}

func newFixture() *fixture {
	f := &fixture{
		tickets:       &fakeTicketRepo{tickets: map[string]*domain.Ticket{}},
		policies:      &fakePolicyRepo{policies: map[string]*domain.SLAPolicy{}, clientPolicies: map[string]string{}, targets: map[string]*domain.SLATarget{}},
		schedules:     &fakeScheduleRepo{schedules: map[string]*domain.BusinessHoursSchedule{}},
		managers:      &fakeManagerRepo{managers: map[string]*domain.EscalationManagerConfig{}},
		settings:      &fakeSettingsRepo{statusPause: map[string]bool{}},
		audit:         &fakeAuditRepo{},
		resources:     &fakeResourceRepo{existing: map[string]bool{}},
		notifications: &fakeNotificationRepo{},
		backend:       &fakeBackend{},
		dispatcher:    events.NewInMemoryDispatcher(),
		logger:        zap.NewNop(),
		now:           time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC),
	}
	f.dispatcher.SubscribeAll(func(_ context.Context, event events.Event) error {
		f.published = append(f.published, event)
		return nil
	})
	f.store = &repository.Store{
		Tickets:            f.tickets,
		Policies:           f.policies,
		Schedules:          f.schedules,
		EscalationManagers: f.managers,
		Settings:           f.settings,
		Audit:              f.audit,
		Resources:          f.resources,
		Notifications:      f.notifications,
	}
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

func (f *fixture) timerService() *TimerService {
	return NewTimerService(TimerDependencies{
		Store:      f.store,
		Resolver:   NewPolicyResolver(f.policies, f.schedules, f.logger),
		Backend:    f.backend,
		Dispatcher: f.dispatcher,
		Logger:     f.logger,
		Clock:      f.clock,
	})
}

func (f *fixture) pauseService() *PauseService {
	return NewPauseService(PauseDependencies{
		Store:      f.store,
		Backend:    f.backend,
		Dispatcher: f.dispatcher,
		Logger:     f.logger,
		Clock:      f.clock,
	})
}

func (f *fixture) escalationService() *EscalationService {
	return NewEscalationService(EscalationDependencies{
		Store:      f.store,
		Resolver:   NewPolicyResolver(f.policies, f.schedules, f.logger),
		Dispatcher: f.dispatcher,
		Logger:     f.logger,
		Clock:      f.clock,
	})
}

func (f *fixture) seedPolicy(policyID, priorityID string, target domain.SLATarget) {
	target.PolicyID = policyID
	target.PriorityID = priorityID
	f.policies.policies[policyID] = &domain.SLAPolicy{ID: policyID, Name: "Gold", ScheduleID: "sched-1"}
	f.policies.targets[targetKey(policyID, priorityID)] = &target
}

func (f *fixture) seedTicket(ticket *domain.Ticket) {
	if ticket.StatusID == "" {
		ticket.StatusID = "status-open"
	}
	if ticket.ResponseState == "" {
		ticket.ResponseState = domain.ResponseStateAwaitingAgent
	}
	clone := *ticket
	f.tickets.tickets[ticket.ID] = &clone
}

func (f *fixture) eventsOfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, event := range f.published {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
