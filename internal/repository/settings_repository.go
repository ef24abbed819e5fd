package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SettingsRepository reads the status pause table and tenant SLA settings.
type SettingsRepository interface {
	StatusPauseConfig(ctx context.Context, statusID string) (*domain.StatusPauseConfig, error)
	Settings(ctx context.Context) (domain.SLASettings, error)
}

type settingsRepository struct {
	db DB
}

// NewSettingsRepository instantiates repository.
func NewSettingsRepository(db DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// StatusPauseConfig returns the pause configuration for a ticket status, or
// nil when the status has no row. Statuses without a row do not pause.
func (r *settingsRepository) StatusPauseConfig(ctx context.Context, statusID string) (*domain.StatusPauseConfig, error) {
	const query = `SELECT status_id, pauses_sla FROM status_sla_pause_config WHERE status_id=$1`
	var config domain.StatusPauseConfig
	if err := r.db.QueryRow(ctx, query, statusID).Scan(&config.StatusID, &config.PausesSLA); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

// Settings returns the tenant SLA settings, applying defaults when no row is
// stored.
func (r *settingsRepository) Settings(ctx context.Context) (domain.SLASettings, error) {
	const query = `SELECT pause_on_awaiting_client FROM sla_settings LIMIT 1`
	var settings domain.SLASettings
	if err := r.db.QueryRow(ctx, query).Scan(&settings.PauseOnAwaitingClient); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultSLASettings(), nil
		}
		return domain.SLASettings{}, err
	}
	return settings, nil
}
