package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
)

// effectiveDue shifts a due instant forward by accumulated pause minutes.
func effectiveDue(due time.Time, pauseMinutes int) time.Time {
	return due.Add(time.Duration(pauseMinutes) * time.Minute)
}

// wholeMinutes truncates a duration to whole minutes, matching how the pause
// accumulator and remaining-time projections are stored.
func wholeMinutes(d time.Duration) int {
	return int(d.Minutes())
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

func newAuditEntry(ticketID string, action domain.SLAAuditAction, actorID *string, oldValue, newValue map[string]any) *domain.SLAAuditEntry {
	return &domain.SLAAuditEntry{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		Action:   action,
		ActorID:  actorID,
		OldValue: oldValue,
		NewValue: newValue,
	}
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
