package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// ResolvedPolicy bundles the policy, the priority target and the operating
// schedule used for due date arithmetic.
type ResolvedPolicy struct {
	Policy   *domain.SLAPolicy
	Target   *domain.SLATarget
	Schedule *domain.BusinessHoursSchedule
}

// EffectiveSchedule returns the schedule the clock counts against, or nil
// when the target overrides to 24x7 wall-clock counting.
func (r *ResolvedPolicy) EffectiveSchedule() *domain.BusinessHoursSchedule {
	if r == nil || r.Target == nil || r.Target.Is24x7 {
		return nil
	}
	return r.Schedule
}

// PolicyResolver resolves the SLA policy and target applicable to a ticket.
type PolicyResolver struct {
	policies  repository.PolicyRepository
	schedules repository.ScheduleRepository
	logger    *zap.Logger
}

// NewPolicyResolver constructs the resolver.
func NewPolicyResolver(policies repository.PolicyRepository, schedules repository.ScheduleRepository, logger *zap.Logger) *PolicyResolver {
	return &PolicyResolver{policies: policies, schedules: schedules, logger: logger}
}

// Resolve returns the policy and target for a client/priority pair, or nil
// when either is missing. A nil result means "SLA tracking not applicable"
// and is never an error.
func (r *PolicyResolver) Resolve(ctx context.Context, clientID string, priorityID *string) (*ResolvedPolicy, error) {
	if priorityID == nil {
		return nil, nil
	}
	policy, err := r.policies.GetForClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.resolveTarget(ctx, policy, *priorityID)
}

// ResolveByPolicy looks up the target for an already-known policy id, used
// when re-reading a ticket that carries its policy reference.
func (r *PolicyResolver) ResolveByPolicy(ctx context.Context, policyID string, priorityID *string) (*ResolvedPolicy, error) {
	if priorityID == nil {
		return nil, nil
	}
	policy, err := r.policies.GetByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r.resolveTarget(ctx, policy, *priorityID)
}

func (r *PolicyResolver) resolveTarget(ctx context.Context, policy *domain.SLAPolicy, priorityID string) (*ResolvedPolicy, error) {
	target, err := r.policies.GetTarget(ctx, policy.ID, priorityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	resolved := &ResolvedPolicy{Policy: policy, Target: target}
	if target.Is24x7 {
		return resolved, nil
	}

	schedule, err := r.schedules.GetByID(ctx, policy.ScheduleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A policy pointing at a deleted schedule degrades to
			// wall-clock counting rather than blocking tracking.
			r.logger.Warn("schedule missing for policy, counting wall clock",
				zap.String("policy_id", policy.ID),
				zap.String("schedule_id", policy.ScheduleID))
			return resolved, nil
		}
		return nil, err
	}
	resolved.Schedule = schedule
	return resolved, nil
}
