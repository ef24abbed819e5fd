package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the query surface repositories run against. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so callers pick the transactional context explicitly.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles every repository the engine consumes over a single DB handle.
type Store struct {
	Tickets            TicketRepository
	Policies           PolicyRepository
	Schedules          ScheduleRepository
	EscalationManagers EscalationManagerRepository
	Settings           SettingsRepository
	Audit              AuditRepository
	Resources          ResourceRepository
	Notifications      NotificationRepository
}

// NewStore builds a repository bundle over db.
func NewStore(db DB) *Store {
	return &Store{
		Tickets:            NewTicketRepository(db),
		Policies:           NewPolicyRepository(db),
		Schedules:          NewScheduleRepository(db),
		EscalationManagers: NewEscalationManagerRepository(db),
		Settings:           NewSettingsRepository(db),
		Audit:              NewAuditRepository(db),
		Resources:          NewResourceRepository(db),
		Notifications:      NewNotificationRepository(db),
	}
}

// WithTx returns a bundle scoped to the given transaction. Engine operations
// invoked inside a caller-managed transaction use this so every read and
// write shares the caller's isolation.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return NewStore(tx)
}
