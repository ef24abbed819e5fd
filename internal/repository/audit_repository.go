package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// AuditRepository appends SLA audit log entries. The log is insert-only.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.SLAAuditEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAAuditEntry, error)
}

type auditRepository struct {
	db DB
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.SLAAuditEntry) error {
	const query = `
        INSERT INTO sla_audit_log (id, ticket_id, action, actor_id, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.TicketID,
		entry.Action,
		entry.ActorID,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.CreatedAt)
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.SLAAuditEntry, error) {
	const query = `
        SELECT id, ticket_id, action, actor_id, old_value, new_value, created_at
        FROM sla_audit_log WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAAuditEntry
	for rows.Next() {
		var entry domain.SLAAuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Action,
			&entry.ActorID,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
