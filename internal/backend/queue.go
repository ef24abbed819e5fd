package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	wakeupSetKey    = "sla:wakeups"
	ticketIndexKey  = "sla:wakeups:ticket:"
	pausedFlagKey   = "sla:paused:"
	memberSeparator = "|"
)

// Queue is the default Port implementation: wake-ups live in a Redis sorted
// set scored by due time and are drained by the poller worker. Escalation
// wake-up times are wall-clock approximations; the poller recomputes elapsed
// percentage against business hours at delivery time.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue builds the polling backend.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// StartTracking schedules breach wake-ups at the due instants and an
// escalation check per configured threshold.
func (q *Queue) StartTracking(ctx context.Context, tracking Tracking) error {
	if tracking.ResponseDueAt != nil {
		if err := q.schedule(ctx, tracking.TicketID, WakeupResponseBreach, 0, *tracking.ResponseDueAt); err != nil {
			return err
		}
	}
	if tracking.ResolutionDueAt != nil {
		if err := q.schedule(ctx, tracking.TicketID, WakeupResolutionBreach, 0, *tracking.ResolutionDueAt); err != nil {
			return err
		}
	}
	for level := 1; level <= 3; level++ {
		pct := tracking.Target.ThresholdForLevel(level)
		if pct == nil {
			continue
		}
		offset := time.Duration(tracking.Target.ResolutionTimeMinutes*(*pct)/100) * time.Minute
		at := tracking.StartedAt.Add(offset)
		if err := q.schedule(ctx, tracking.TicketID, WakeupEscalationCheck, level, at); err != nil {
			return err
		}
	}
	return nil
}

// Pause flags the ticket so delivered wake-ups are deferred until resume.
func (q *Queue) Pause(ctx context.Context, ticketID string) error {
	return q.client.Set(ctx, pausedFlagKey+ticketID, "1", 0).Err()
}

// Resume clears the pause flag.
func (q *Queue) Resume(ctx context.Context, ticketID string) error {
	return q.client.Del(ctx, pausedFlagKey+ticketID).Err()
}

// Complete removes all pending wake-ups for the ticket.
func (q *Queue) Complete(ctx context.Context, ticketID string) error {
	return q.Cancel(ctx, ticketID)
}

// Cancel removes all pending wake-ups and the pause flag for the ticket.
func (q *Queue) Cancel(ctx context.Context, ticketID string) error {
	indexKey := ticketIndexKey + ticketID
	members, err := q.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}
	if len(members) > 0 {
		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
		}
		if err := q.client.ZRem(ctx, wakeupSetKey, args...).Err(); err != nil {
			return err
		}
	}
	return q.client.Del(ctx, indexKey, pausedFlagKey+ticketID).Err()
}

// Status reports the backend's view of a ticket's tracking.
func (q *Queue) Status(ctx context.Context, ticketID string) (string, error) {
	paused, err := q.client.Exists(ctx, pausedFlagKey+ticketID).Result()
	if err != nil {
		return "", err
	}
	if paused > 0 {
		return "paused", nil
	}
	pending, err := q.client.SCard(ctx, ticketIndexKey+ticketID).Result()
	if err != nil {
		return "", err
	}
	if pending > 0 {
		return "scheduled", nil
	}
	return "none", nil
}

// IsPaused reports the pause flag for the poller.
func (q *Queue) IsPaused(ctx context.Context, ticketID string) (bool, error) {
	n, err := q.client.Exists(ctx, pausedFlagKey+ticketID).Result()
	return n > 0, err
}

// Due returns up to limit wake-ups whose due time has passed.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int) ([]Wakeup, error) {
	members, err := q.client.ZRangeByScore(ctx, wakeupSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}
	wakeups := make([]Wakeup, 0, len(members))
	for _, member := range members {
		wakeup, err := parseMember(member)
		if err != nil {
			q.logger.Warn("dropping malformed wakeup", zap.String("member", member), zap.Error(err))
			q.client.ZRem(ctx, wakeupSetKey, member)
			continue
		}
		wakeups = append(wakeups, wakeup)
	}
	return wakeups, nil
}

// Ack removes a delivered wake-up.
func (q *Queue) Ack(ctx context.Context, wakeup Wakeup) error {
	member := formatMember(wakeup)
	if err := q.client.ZRem(ctx, wakeupSetKey, member).Err(); err != nil {
		return err
	}
	return q.client.SRem(ctx, ticketIndexKey+wakeup.TicketID, member).Err()
}

// Defer pushes a delivered wake-up back with a later due time. Used when the
// ticket is paused at delivery.
func (q *Queue) Defer(ctx context.Context, wakeup Wakeup, until time.Time) error {
	if err := q.Ack(ctx, wakeup); err != nil {
		return err
	}
	return q.schedule(ctx, wakeup.TicketID, wakeup.Kind, wakeup.Level, until)
}

func (q *Queue) schedule(ctx context.Context, ticketID string, kind WakeupKind, level int, at time.Time) error {
	member := formatMember(Wakeup{TicketID: ticketID, Kind: kind, Level: level, DueAt: at})
	if err := q.client.ZAdd(ctx, wakeupSetKey, redis.Z{Score: float64(at.Unix()), Member: member}).Err(); err != nil {
		return err
	}
	return q.client.SAdd(ctx, ticketIndexKey+ticketID, member).Err()
}

func formatMember(w Wakeup) string {
	return strings.Join([]string{
		w.TicketID,
		string(w.Kind),
		strconv.Itoa(w.Level),
		strconv.FormatInt(w.DueAt.Unix(), 10),
	}, memberSeparator)
}

func parseMember(member string) (Wakeup, error) {
	parts := strings.Split(member, memberSeparator)
	if len(parts) != 4 {
		return Wakeup{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}
	level, err := strconv.Atoi(parts[2])
	if err != nil {
		return Wakeup{}, fmt.Errorf("bad level: %w", err)
	}
	due, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Wakeup{}, fmt.Errorf("bad due time: %w", err)
	}
	return Wakeup{
		TicketID: parts[0],
		Kind:     WakeupKind(parts[1]),
		Level:    level,
		DueAt:    time.Unix(due, 0).UTC(),
	}, nil
}
