package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/backend"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/service"
)

// Poller drains due wake-ups from the queue backend and routes them to the
// escalation and breach checks. It runs only in the queue deployment mode;
// the workflow backend delivers wake-ups through its own callback channel.
type Poller struct {
	queue       *backend.Queue
	timers      *service.TimerService
	escalations *service.EscalationService
	metrics     *observability.Metrics
	logger      *zap.Logger
	interval    time.Duration
	batchSize   int
}

// NewPoller constructs the worker.
func NewPoller(queue *backend.Queue, timers *service.TimerService, escalations *service.EscalationService, metrics *observability.Metrics, logger *zap.Logger, interval time.Duration, batchSize int) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Poller{
		queue:       queue,
		timers:      timers,
		escalations: escalations,
		metrics:     metrics,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("sla poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("sla poller stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	now := time.Now()
	wakeups, err := p.queue.Due(ctx, now, p.batchSize)
	if err != nil {
		p.logger.Error("reading due wakeups", zap.Error(err))
		return
	}

	for _, wakeup := range wakeups {
		paused, err := p.queue.IsPaused(ctx, wakeup.TicketID)
		if err != nil {
			p.logger.Error("checking pause flag", zap.String("ticket_id", wakeup.TicketID), zap.Error(err))
			continue
		}
		if paused {
			if err := p.queue.Defer(ctx, wakeup, now.Add(p.interval)); err != nil {
				p.logger.Error("deferring wakeup", zap.String("ticket_id", wakeup.TicketID), zap.Error(err))
			}
			continue
		}

		retryAt, err := p.handle(ctx, wakeup)
		if err != nil {
			// Leave the wakeup in place; it is retried on the next tick.
			p.logger.Error("handling wakeup",
				zap.String("ticket_id", wakeup.TicketID),
				zap.String("kind", string(wakeup.Kind)),
				zap.Error(err))
			continue
		}
		if retryAt != nil {
			// Delivered before the effective due instant (pause shifted it,
			// or business hours stretched it). Reschedule, never drop.
			at := *retryAt
			if !at.After(now) {
				at = now.Add(p.interval)
			}
			if err := p.queue.Defer(ctx, wakeup, at); err != nil {
				p.logger.Error("deferring wakeup", zap.String("ticket_id", wakeup.TicketID), zap.Error(err))
			}
			continue
		}
		if err := p.queue.Ack(ctx, wakeup); err != nil {
			p.logger.Error("acking wakeup", zap.String("ticket_id", wakeup.TicketID), zap.Error(err))
		}
		p.metrics.RecordWakeup(string(wakeup.Kind))
	}
}

func (p *Poller) handle(ctx context.Context, wakeup backend.Wakeup) (*time.Time, error) {
	switch wakeup.Kind {
	case backend.WakeupEscalationCheck:
		return p.escalations.CheckAndEscalate(ctx, wakeup.TicketID)
	case backend.WakeupResponseBreach, backend.WakeupResolutionBreach:
		return p.timers.EvaluateBreach(ctx, wakeup.TicketID, wakeup.Kind)
	default:
		p.logger.Warn("unknown wakeup kind", zap.String("kind", string(wakeup.Kind)))
		return nil, nil
	}
}
