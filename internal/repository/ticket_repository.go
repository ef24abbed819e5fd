package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TicketRepository reads tickets and writes their SLA fields. The rest of the
// ticket row belongs to the surrounding ticketing service.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateSLA(ctx context.Context, ticket *domain.Ticket) error
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, client_id, board_id, priority_id, status_id, response_state,
       sla_policy_id, sla_started_at, sla_response_due_at, sla_response_at, sla_response_met,
       sla_resolution_due_at, sla_resolution_at, sla_resolution_met,
       sla_paused_at, sla_total_pause_minutes, escalation_level, escalated,
       created_at, updated_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.ClientID,
		&ticket.BoardID,
		&ticket.PriorityID,
		&ticket.StatusID,
		&ticket.ResponseState,
		&ticket.SLAPolicyID,
		&ticket.SLAStartedAt,
		&ticket.SLAResponseDueAt,
		&ticket.SLAResponseAt,
		&ticket.SLAResponseMet,
		&ticket.SLAResolutionDueAt,
		&ticket.SLAResolutionAt,
		&ticket.SLAResolutionMet,
		&ticket.SLAPausedAt,
		&ticket.SLATotalPauseMinutes,
		&ticket.EscalationLevel,
		&ticket.Escalated,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateSLA(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET sla_policy_id=$1, sla_started_at=$2,
            sla_response_due_at=$3, sla_response_at=$4, sla_response_met=$5,
            sla_resolution_due_at=$6, sla_resolution_at=$7, sla_resolution_met=$8,
            sla_paused_at=$9, sla_total_pause_minutes=$10,
            escalation_level=$11, escalated=$12, updated_at=NOW()
        WHERE id=$13`
	cmd, err := r.db.Exec(ctx, query,
		ticket.SLAPolicyID,
		ticket.SLAStartedAt,
		ticket.SLAResponseDueAt,
		ticket.SLAResponseAt,
		ticket.SLAResponseMet,
		ticket.SLAResolutionDueAt,
		ticket.SLAResolutionAt,
		ticket.SLAResolutionMet,
		ticket.SLAPausedAt,
		ticket.SLATotalPauseMinutes,
		ticket.EscalationLevel,
		ticket.Escalated,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
