package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// NotificationRepository inserts in-app notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.InternalNotification) error
}

type notificationRepository struct {
	db DB
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(db DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.InternalNotification) error {
	const query = `
        INSERT INTO internal_notifications (id, user_id, ticket_id, kind, title, body)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		notification.ID,
		notification.UserID,
		notification.TicketID,
		notification.Kind,
		notification.Title,
		notification.Body,
	).Scan(&notification.CreatedAt)
}
