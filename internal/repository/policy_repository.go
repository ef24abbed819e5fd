package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// PolicyRepository reads SLA policies and their per-priority targets.
type PolicyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error)
	GetForClient(ctx context.Context, clientID string) (*domain.SLAPolicy, error)
	GetTarget(ctx context.Context, policyID, priorityID string) (*domain.SLATarget, error)
}

type policyRepository struct {
	db DB
}

// NewPolicyRepository instantiates repository.
func NewPolicyRepository(db DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) GetByID(ctx context.Context, id string) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, name, schedule_id, created_at, updated_at
        FROM sla_policies WHERE id=$1`
	return r.scanPolicy(ctx, query, id)
}

func (r *policyRepository) GetForClient(ctx context.Context, clientID string) (*domain.SLAPolicy, error) {
	const query = `
        SELECT p.id, p.name, p.schedule_id, p.created_at, p.updated_at
        FROM sla_policies p
        JOIN clients c ON c.sla_policy_id = p.id
        WHERE c.id=$1`
	return r.scanPolicy(ctx, query, clientID)
}

func (r *policyRepository) scanPolicy(ctx context.Context, query string, arg any) (*domain.SLAPolicy, error) {
	var policy domain.SLAPolicy
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&policy.ID,
		&policy.Name,
		&policy.ScheduleID,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) GetTarget(ctx context.Context, policyID, priorityID string) (*domain.SLATarget, error) {
	const query = `
        SELECT policy_id, priority_id, response_time_minutes, resolution_time_minutes, is_24x7,
               escalation1_percent, escalation2_percent, escalation3_percent
        FROM sla_policy_targets WHERE policy_id=$1 AND priority_id=$2`
	var target domain.SLATarget
	if err := r.db.QueryRow(ctx, query, policyID, priorityID).Scan(
		&target.PolicyID,
		&target.PriorityID,
		&target.ResponseTimeMinutes,
		&target.ResolutionTimeMinutes,
		&target.Is24x7,
		&target.Escalation1Percent,
		&target.Escalation2Percent,
		&target.Escalation3Percent,
	); err != nil {
		return nil, err
	}
	return &target, nil
}
