package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
)

// NotificationService delivers email notifications for SLA events. In-app
// notifications are inserted synchronously by the escalation service; email
// delivery is decoupled through the dispatcher.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSLAEscalated, n.handleEscalated)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleBreached)
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAEscalatedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("escalation notification",
		zap.String("ticket_id", event.TicketID),
		zap.Int("level", payload.Level))
	if payload.NotifyEmail && payload.ManagerUserID != nil {
		n.sendEmailNotificationStub(ctx, event, *payload.ManagerUserID)
	}
	return nil
}

func (n *NotificationService) handleBreached(ctx context.Context, event events.Event) error {
	n.logger.Warn("breach notification",
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, recipientUserID string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification queued",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_user_id", recipientUserID),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
