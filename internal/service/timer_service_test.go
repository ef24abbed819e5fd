package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/backend"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
)

func seedTrackedTicket(f *fixture, ticketID string) {
	f.seedPolicy("pol-1", "prio-1", domain.SLATarget{
		ResponseTimeMinutes:   60,
		ResolutionTimeMinutes: 240,
		Is24x7:                true,
	})
	f.policies.clientPolicies["client-1"] = "pol-1"
	f.seedTicket(&domain.Ticket{
		ID:         ticketID,
		ClientID:   "client-1",
		PriorityID: strPtr("prio-1"),
	})
}

func strPtr(s string) *string { return &s }

func TestStartComputesDueDates(t *testing.T) {
	f := newFixture()
	seedTrackedTicket(f, "tick-1")
	svc := f.timerService()

	result, err := svc.Start(context.Background(), "tick-1", f.now, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Applicable)
	require.NotNil(t, result.ResponseDueAt)
	require.NotNil(t, result.ResolutionDueAt)
	assert.Equal(t, f.now.Add(60*time.Minute), *result.ResponseDueAt)
	assert.Equal(t, f.now.Add(240*time.Minute), *result.ResolutionDueAt)

	stored := f.tickets.tickets["tick-1"]
	require.NotNil(t, stored.SLAPolicyID)
	assert.Equal(t, "pol-1", *stored.SLAPolicyID)
	assert.Equal(t, f.now, *stored.SLAStartedAt)

	assert.Equal(t, 1, f.audit.countByAction(domain.AuditActionStarted))
	require.Len(t, f.backend.started, 1)
	assert.Equal(t, "tick-1", f.backend.started[0].TicketID)
	assert.Len(t, f.eventsOfType(events.EventSLAStarted), 1)
}

func TestStartWithoutApplicablePolicy(t *testing.T) {
	f := newFixture()
	f.seedTicket(&domain.Ticket{ID: "tick-1", ClientID: "client-1", PriorityID: strPtr("prio-1")})
	svc := f.timerService()

	result, err := svc.Start(context.Background(), "tick-1", f.now, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Applicable)
	assert.Equal(t, 0, f.tickets.updates)
	assert.Empty(t, f.audit.entries)
}

func TestStartAlreadyStarted(t *testing.T) {
	f := newFixture()
	seedTrackedTicket(f, "tick-1")
	svc := f.timerService()

	_, err := svc.Start(context.Background(), "tick-1", f.now, nil)
	require.NoError(t, err)
	result, err := svc.Start(context.Background(), "tick-1", f.now, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestStartTicketNotFound(t *testing.T) {
	f := newFixture()
	svc := f.timerService()

	result, err := svc.Start(context.Background(), "missing", f.now, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Ticket not found", result.Error)
}

func TestStartBackendFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	seedTrackedTicket(f, "tick-1")
	f.backend.startErr = assert.AnError
	svc := f.timerService()

	result, err := svc.Start(context.Background(), "tick-1", f.now, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotNil(t, f.tickets.tickets["tick-1"].SLAPolicyID)
}

func TestRecordFirstResponseInclusiveBoundary(t *testing.T) {
	due := time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)

	f := newFixture()
	f.seedTicket(&domain.Ticket{
		ID:               "tick-1",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(due.Add(-time.Hour)),
		SLAResponseDueAt: &due,
	})
	svc := f.timerService()

	result, err := svc.RecordFirstResponse(context.Background(), "tick-1", due, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Met)
	assert.True(t, *result.Met, "responding exactly at the due instant meets the target")

	f = newFixture()
	f.seedTicket(&domain.Ticket{
		ID:               "tick-2",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(due.Add(-time.Hour)),
		SLAResponseDueAt: &due,
	})
	svc = f.timerService()

	result, err = svc.RecordFirstResponse(context.Background(), "tick-2", due.Add(time.Second), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Met)
	assert.False(t, *result.Met)
}

func TestRecordFirstResponsePauseAdjustedDeadline(t *testing.T) {
	due := time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)

	f := newFixture()
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		SLAPolicyID:          strPtr("pol-1"),
		SLAStartedAt:         timePtr(due.Add(-time.Hour)),
		SLAResponseDueAt:     &due,
		SLATotalPauseMinutes: 30,
	})
	svc := f.timerService()

	// 30 paused minutes push the effective deadline to due+30m.
	result, err := svc.RecordFirstResponse(context.Background(), "tick-1", due.Add(30*time.Minute), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Met)
	assert.True(t, *result.Met)

	stored := f.tickets.tickets["tick-1"]
	require.NotNil(t, stored.SLAResponseMet)
	assert.True(t, *stored.SLAResponseMet)
}

func TestRecordFirstResponseIdempotent(t *testing.T) {
	due := time.Date(2024, 5, 6, 13, 0, 0, 0, time.UTC)

	f := newFixture()
	f.seedTicket(&domain.Ticket{
		ID:               "tick-1",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(due.Add(-time.Hour)),
		SLAResponseDueAt: &due,
	})
	svc := f.timerService()

	first, err := svc.RecordFirstResponse(context.Background(), "tick-1", due.Add(-time.Minute), nil)
	require.NoError(t, err)
	require.NotNil(t, first.Met)

	updatesAfterFirst := f.tickets.updates
	second, err := svc.RecordFirstResponse(context.Background(), "tick-1", due.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Nil(t, second.Met, "repeat recording must not re-evaluate the outcome")
	assert.NotEmpty(t, second.Error)
	assert.Equal(t, updatesAfterFirst, f.tickets.updates)
	assert.Equal(t, 1, f.audit.countByAction(domain.AuditActionResponseRecorded))
}

func TestRecordResolutionCompletesBackendTracking(t *testing.T) {
	due := time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC)

	f := newFixture()
	f.seedTicket(&domain.Ticket{
		ID:                 "tick-1",
		ClientID:           "client-1",
		SLAPolicyID:        strPtr("pol-1"),
		SLAStartedAt:       timePtr(due.Add(-4 * time.Hour)),
		SLAResolutionDueAt: &due,
	})
	svc := f.timerService()

	result, err := svc.RecordResolution(context.Background(), "tick-1", due.Add(-time.Hour), nil)
	require.NoError(t, err)
	require.NotNil(t, result.Met)
	assert.True(t, *result.Met)
	assert.Equal(t, []string{"tick-1"}, f.backend.completed)
	assert.Len(t, f.eventsOfType(events.EventSLAResolutionRecorded), 1)
}

func TestStatusNilWithoutPolicy(t *testing.T) {
	f := newFixture()
	f.seedTicket(&domain.Ticket{ID: "tick-1", ClientID: "client-1"})
	svc := f.timerService()

	status, err := svc.Status(context.Background(), "tick-1")
	require.NoError(t, err)
	assert.Nil(t, status)

	status, err = svc.Status(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestStatusPausedWinsOverBreach(t *testing.T) {
	f := newFixture()
	pausedAt := f.now.Add(-10 * time.Minute)
	overdue := f.now.Add(-time.Hour)
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		SLAPolicyID:          strPtr("pol-1"),
		SLAStartedAt:         timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt:     &overdue,
		SLAPausedAt:          &pausedAt,
		SLATotalPauseMinutes: 5,
	})
	svc := f.timerService()

	status, err := svc.Status(context.Background(), "tick-1")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, domain.SLAStatusPaused, status.Status)
	require.NotNil(t, status.PausedAt)
	assert.Equal(t, 15, status.TotalPauseMinutes, "open pause counts into the total")
}

func TestStatusBreachedAndAtRisk(t *testing.T) {
	f := newFixture()
	f.seedPolicy("pol-1", "prio-1", domain.SLATarget{
		ResponseTimeMinutes:   60,
		ResolutionTimeMinutes: 240,
		Is24x7:                true,
	})

	overdue := f.now.Add(-time.Minute)
	f.seedTicket(&domain.Ticket{
		ID:               "breached",
		ClientID:         "client-1",
		PriorityID:       strPtr("prio-1"),
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt: &overdue,
	})

	soon := f.now.Add(10 * time.Minute)
	f.seedTicket(&domain.Ticket{
		ID:               "at-risk",
		ClientID:         "client-1",
		PriorityID:       strPtr("prio-1"),
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-50 * time.Minute)),
		SLAResponseDueAt: &soon,
	})

	comfortable := f.now.Add(50 * time.Minute)
	f.seedTicket(&domain.Ticket{
		ID:               "on-track",
		ClientID:         "client-1",
		PriorityID:       strPtr("prio-1"),
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-10 * time.Minute)),
		SLAResponseDueAt: &comfortable,
	})

	svc := f.timerService()

	status, err := svc.Status(context.Background(), "breached")
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusResponseBreached, status.Status)

	// 10 remaining of a 60 minute target is inside the 25% at-risk band.
	status, err = svc.Status(context.Background(), "at-risk")
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusAtRisk, status.Status)
	require.NotNil(t, status.ResponseRemainingMinutes)
	assert.Equal(t, 10, *status.ResponseRemainingMinutes)

	status, err = svc.Status(context.Background(), "on-track")
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusOnTrack, status.Status)
}

func TestEvaluateBreachPublishesOnce(t *testing.T) {
	f := newFixture()
	overdue := f.now.Add(-time.Hour)
	f.seedTicket(&domain.Ticket{
		ID:               "tick-1",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt: &overdue,
	})
	svc := f.timerService()

	retry, err := svc.EvaluateBreach(context.Background(), "tick-1", backend.WakeupResponseBreach)
	require.NoError(t, err)
	assert.Nil(t, retry)
	assert.Len(t, f.eventsOfType(events.EventSLABreached), 1)
}

func TestEvaluateBreachSuppressedWhenRecorded(t *testing.T) {
	f := newFixture()
	overdue := f.now.Add(-time.Hour)
	f.seedTicket(&domain.Ticket{
		ID:               "tick-1",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt: &overdue,
		SLAResponseAt:    timePtr(overdue.Add(-time.Minute)),
	})
	svc := f.timerService()

	retry, err := svc.EvaluateBreach(context.Background(), "tick-1", backend.WakeupResponseBreach)
	require.NoError(t, err)
	assert.Nil(t, retry)
	assert.Empty(t, f.eventsOfType(events.EventSLABreached))
}

func TestEvaluateBreachDefersWhenPauseShiftsDue(t *testing.T) {
	f := newFixture()
	overdue := f.now.Add(-time.Minute)
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		SLAPolicyID:          strPtr("pol-1"),
		SLAStartedAt:         timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt:     &overdue,
		SLATotalPauseMinutes: 120,
	})
	svc := f.timerService()

	// The wake-up fires at the stored due instant, but two hours of pause
	// shifted the effective due into the future. No breach yet; the check
	// reports when to look again.
	retry, err := svc.EvaluateBreach(context.Background(), "tick-1", backend.WakeupResponseBreach)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, overdue.Add(120*time.Minute), *retry)
	assert.Empty(t, f.eventsOfType(events.EventSLABreached))
}

func TestEvaluateBreachDefersWhilePaused(t *testing.T) {
	f := newFixture()
	overdue := f.now.Add(-10 * time.Minute)
	f.seedTicket(&domain.Ticket{
		ID:               "tick-1",
		ClientID:         "client-1",
		SLAPolicyID:      strPtr("pol-1"),
		SLAStartedAt:     timePtr(f.now.Add(-2 * time.Hour)),
		SLAResponseDueAt: &overdue,
		SLAPausedAt:      timePtr(f.now.Add(-5 * time.Minute)),
	})
	svc := f.timerService()

	retry, err := svc.EvaluateBreach(context.Background(), "tick-1", backend.WakeupResponseBreach)
	require.NoError(t, err)
	assert.NotNil(t, retry)
	assert.Empty(t, f.eventsOfType(events.EventSLABreached))
}

func TestHandlePolicyChangeRestartsFromChangeInstant(t *testing.T) {
	f := newFixture()
	f.seedPolicy("pol-new", "prio-1", domain.SLATarget{
		ResponseTimeMinutes:   30,
		ResolutionTimeMinutes: 120,
		Is24x7:                true,
	})
	f.policies.clientPolicies["client-1"] = "pol-new"

	started := f.now.Add(-3 * time.Hour)
	responded := f.now.Add(-2 * time.Hour)
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		PriorityID:           strPtr("prio-1"),
		SLAPolicyID:          strPtr("pol-old"),
		SLAStartedAt:         &started,
		SLAResponseDueAt:     timePtr(started.Add(time.Hour)),
		SLAResponseAt:        &responded,
		SLAResponseMet:       boolPtr(true),
		SLAResolutionDueAt:   timePtr(started.Add(4 * time.Hour)),
		SLATotalPauseMinutes: 50,
		EscalationLevel:      intPtr(2),
		Escalated:            true,
	})
	svc := f.timerService()

	result, err := svc.HandlePolicyChange(context.Background(), "tick-1", nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.Applicable)

	assert.Equal(t, []string{"tick-1"}, f.backend.cancelled)

	stored := f.tickets.tickets["tick-1"]
	assert.Equal(t, "pol-new", *stored.SLAPolicyID)
	assert.Equal(t, f.now, *stored.SLAStartedAt)
	assert.Equal(t, f.now.Add(30*time.Minute), *stored.SLAResponseDueAt)
	assert.Equal(t, 0, stored.SLATotalPauseMinutes)
	assert.Nil(t, stored.EscalationLevel)
	assert.False(t, stored.Escalated)
	// Recorded outcomes survive the restart.
	require.NotNil(t, stored.SLAResponseAt)
	assert.Equal(t, responded, *stored.SLAResponseAt)

	assert.Equal(t, 1, f.audit.countByAction(domain.AuditActionPolicyChanged))
	assert.Len(t, f.eventsOfType(events.EventSLAPolicyChanged), 1)
}
