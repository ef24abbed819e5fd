package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationManagerRepository resolves the manager configured for a board and
// escalation level.
type EscalationManagerRepository interface {
	GetForBoardLevel(ctx context.Context, boardID string, level int) (*domain.EscalationManagerConfig, error)
}

type escalationManagerRepository struct {
	db DB
}

// NewEscalationManagerRepository instantiates repository.
func NewEscalationManagerRepository(db DB) EscalationManagerRepository {
	return &escalationManagerRepository{db: db}
}

func (r *escalationManagerRepository) GetForBoardLevel(ctx context.Context, boardID string, level int) (*domain.EscalationManagerConfig, error) {
	const query = `
        SELECT em.board_id, em.escalation_level, em.manager_user_id, u.name,
               em.notify_in_app, em.notify_email
        FROM escalation_managers em
        JOIN users u ON u.id = em.manager_user_id
        WHERE em.board_id=$1 AND em.escalation_level=$2`
	var config domain.EscalationManagerConfig
	if err := r.db.QueryRow(ctx, query, boardID, level).Scan(
		&config.BoardID,
		&config.Level,
		&config.ManagerUserID,
		&config.ManagerName,
		&config.NotifyInApp,
		&config.NotifyEmail,
	); err != nil {
		return nil, err
	}
	return &config, nil
}
