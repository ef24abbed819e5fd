package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ResourceRepository manages additional users attached to a ticket.
type ResourceRepository interface {
	Exists(ctx context.Context, ticketID, userID string) (bool, error)
	Create(ctx context.Context, resource *domain.TicketResource) error
}

type resourceRepository struct {
	db DB
}

// NewResourceRepository instantiates repository.
func NewResourceRepository(db DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Exists(ctx context.Context, ticketID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM ticket_resources WHERE ticket_id=$1 AND user_id=$2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, ticketID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *resourceRepository) Create(ctx context.Context, resource *domain.TicketResource) error {
	const query = `
        INSERT INTO ticket_resources (id, ticket_id, user_id, role)
        VALUES ($1,$2,$3,$4)
        RETURNING added_at`
	return r.db.QueryRow(ctx, query,
		resource.ID,
		resource.TicketID,
		resource.UserID,
		resource.Role,
	).Scan(&resource.AddedAt)
}
