package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
)

func seedPausableTicket(f *fixture, ticketID string) {
	f.seedTicket(&domain.Ticket{
		ID:           ticketID,
		ClientID:     "client-1",
		SLAPolicyID:  strPtr("pol-1"),
		SLAStartedAt: timePtr(f.now.Add(-time.Hour)),
	})
}

func TestPauseStampsInstantOnce(t *testing.T) {
	f := newFixture()
	seedPausableTicket(f, "tick-1")
	svc := f.pauseService()

	result, err := svc.Pause(context.Background(), "tick-1", domain.PauseReasonStatus, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.False(t, result.WasPaused)
	assert.True(t, result.IsNowPaused)

	stored := f.tickets.tickets["tick-1"]
	require.NotNil(t, stored.SLAPausedAt)
	assert.Equal(t, f.now, *stored.SLAPausedAt)
	assert.Equal(t, []string{"tick-1"}, f.backend.paused)
	assert.Len(t, f.eventsOfType(events.EventSLAPaused), 1)

	// A second pause must not re-stamp or write anything.
	f.now = f.now.Add(20 * time.Minute)
	updates := f.tickets.updates
	result, err = svc.Pause(context.Background(), "tick-1", domain.PauseReasonStatus, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.WasPaused)
	assert.True(t, result.IsNowPaused)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, updates, f.tickets.updates)
	assert.Equal(t, 1, f.audit.countByAction(domain.AuditActionPaused))

	stored = f.tickets.tickets["tick-1"]
	assert.Equal(t, f.now.Add(-20*time.Minute), *stored.SLAPausedAt)
}

func TestPauseWithoutPolicyIsNoOp(t *testing.T) {
	f := newFixture()
	f.seedTicket(&domain.Ticket{ID: "tick-1", ClientID: "client-1"})
	svc := f.pauseService()

	result, err := svc.Pause(context.Background(), "tick-1", domain.PauseReasonStatus, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.IsNowPaused)
	assert.Equal(t, 0, f.tickets.updates)
}

func TestResumeAccumulatesWholeMinutes(t *testing.T) {
	f := newFixture()
	pausedAt := f.now.Add(-45*time.Minute - 30*time.Second)
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		SLAPolicyID:          strPtr("pol-1"),
		SLAStartedAt:         timePtr(f.now.Add(-3 * time.Hour)),
		SLAPausedAt:          &pausedAt,
		SLATotalPauseMinutes: 15,
	})
	svc := f.pauseService()

	result, err := svc.Resume(context.Background(), "tick-1", nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, result.WasPaused)
	assert.Equal(t, 45, result.PauseDurationMinutes, "partial minutes truncate")

	stored := f.tickets.tickets["tick-1"]
	assert.Nil(t, stored.SLAPausedAt)
	assert.Equal(t, 60, stored.SLATotalPauseMinutes)
	assert.Equal(t, []string{"tick-1"}, f.backend.resumed)
	assert.Equal(t, 1, f.audit.countByAction(domain.AuditActionResumed))
}

func TestResumeNotPausedIsNoOp(t *testing.T) {
	f := newFixture()
	seedPausableTicket(f, "tick-1")
	svc := f.pauseService()

	result, err := svc.Resume(context.Background(), "tick-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.WasPaused)
	assert.Equal(t, 0, result.PauseDurationMinutes)
	assert.Equal(t, 0, f.tickets.updates)
}

func TestShouldBePausedStatusWinsOverAwaitingClient(t *testing.T) {
	f := newFixture()
	f.settings.statusPause["status-waiting"] = true
	f.seedTicket(&domain.Ticket{
		ID:            "tick-1",
		ClientID:      "client-1",
		StatusID:      "status-waiting",
		ResponseState: domain.ResponseStateAwaitingClient,
		SLAPolicyID:   strPtr("pol-1"),
	})
	svc := f.pauseService()

	ticket, err := f.tickets.GetByID(context.Background(), "tick-1")
	require.NoError(t, err)
	paused, reason, err := svc.ShouldBePaused(context.Background(), ticket)
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, domain.PauseReasonStatus, reason)
}

func TestShouldBePausedRespectsAwaitingClientSetting(t *testing.T) {
	f := newFixture()
	f.settings.settings = &domain.SLASettings{PauseOnAwaitingClient: false}
	f.seedTicket(&domain.Ticket{
		ID:            "tick-1",
		ClientID:      "client-1",
		ResponseState: domain.ResponseStateAwaitingClient,
		SLAPolicyID:   strPtr("pol-1"),
	})
	svc := f.pauseService()

	ticket, err := f.tickets.GetByID(context.Background(), "tick-1")
	require.NoError(t, err)
	paused, _, err := svc.ShouldBePaused(context.Background(), ticket)
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestHandleResponseStateChangeConverges(t *testing.T) {
	f := newFixture()
	seedPausableTicket(f, "tick-1")
	svc := f.pauseService()

	err := svc.HandleResponseStateChange(context.Background(), "tick-1",
		domain.ResponseStateAwaitingAgent, domain.ResponseStateAwaitingClient, nil)
	require.NoError(t, err)
	require.NotNil(t, f.tickets.tickets["tick-1"].SLAPausedAt)

	f.now = f.now.Add(10 * time.Minute)
	err = svc.HandleResponseStateChange(context.Background(), "tick-1",
		domain.ResponseStateAwaitingClient, domain.ResponseStateAwaitingAgent, nil)
	require.NoError(t, err)

	stored := f.tickets.tickets["tick-1"]
	assert.Nil(t, stored.SLAPausedAt)
	assert.Equal(t, 10, stored.SLATotalPauseMinutes)
}

func TestHandleStatusChangeEvaluatesNewStatus(t *testing.T) {
	f := newFixture()
	f.settings.statusPause["status-waiting"] = true
	seedPausableTicket(f, "tick-1")
	svc := f.pauseService()

	// The stored row still carries the old status when the handler runs; the
	// decision must follow the transition's new status, not the stale row.
	err := svc.HandleStatusChange(context.Background(), "tick-1", "status-open", "status-waiting", nil)
	require.NoError(t, err)
	require.NotNil(t, f.tickets.tickets["tick-1"].SLAPausedAt)

	f.tickets.tickets["tick-1"].StatusID = "status-waiting"
	f.now = f.now.Add(10 * time.Minute)
	err = svc.HandleStatusChange(context.Background(), "tick-1", "status-waiting", "status-open", nil)
	require.NoError(t, err)

	stored := f.tickets.tickets["tick-1"]
	assert.Nil(t, stored.SLAPausedAt)
	assert.Equal(t, 10, stored.SLATotalPauseMinutes)
}

func TestSyncPauseStateIsIdempotent(t *testing.T) {
	f := newFixture()
	f.settings.statusPause["status-waiting"] = true
	f.seedTicket(&domain.Ticket{
		ID:          "tick-1",
		ClientID:    "client-1",
		StatusID:    "status-waiting",
		SLAPolicyID: strPtr("pol-1"),
	})
	svc := f.pauseService()

	require.NoError(t, svc.SyncPauseState(context.Background(), "tick-1"))
	require.NotNil(t, f.tickets.tickets["tick-1"].SLAPausedAt)
	updates := f.tickets.updates

	require.NoError(t, svc.SyncPauseState(context.Background(), "tick-1"))
	assert.Equal(t, updates, f.tickets.updates, "a converged state must not be rewritten")
}

func TestSyncPauseStateMissingTicket(t *testing.T) {
	f := newFixture()
	svc := f.pauseService()

	assert.NoError(t, svc.SyncPauseState(context.Background(), "missing"))
}

func TestStatsReportsOpenPause(t *testing.T) {
	f := newFixture()
	pausedAt := f.now.Add(-25 * time.Minute)
	f.settings.statusPause["status-waiting"] = true
	f.seedTicket(&domain.Ticket{
		ID:                   "tick-1",
		ClientID:             "client-1",
		StatusID:             "status-waiting",
		SLAPolicyID:          strPtr("pol-1"),
		SLAPausedAt:          &pausedAt,
		SLATotalPauseMinutes: 40,
	})
	svc := f.pauseService()

	stats, err := svc.Stats(context.Background(), "tick-1")
	require.NoError(t, err)
	assert.True(t, stats.IsPaused)
	assert.Equal(t, 40, stats.TotalPauseMinutes)
	assert.Equal(t, 25, stats.CurrentPauseMinutes)
	require.NotNil(t, stats.PauseReason)
	assert.Equal(t, domain.PauseReasonStatus, *stats.PauseReason)
}
