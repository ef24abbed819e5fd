package domain

import "time"

// SLAPolicy names a set of per-priority targets bound to a business hours
// schedule. Policies are administered outside this engine and read-only here.
type SLAPolicy struct {
	ID         string
	Name       string
	ScheduleID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SLATarget holds the response/resolution targets for one (policy, priority)
// pair. Escalation thresholds are optional percentages of elapsed target
// time; each level triggers independently.
type SLATarget struct {
	PolicyID              string
	PriorityID            string
	ResponseTimeMinutes   int
	ResolutionTimeMinutes int
	Is24x7                bool

	Escalation1Percent *int
	Escalation2Percent *int
	Escalation3Percent *int
}

// ThresholdForLevel returns the configured percentage for an escalation
// level, or nil when unset or the level is out of range.
func (t *SLATarget) ThresholdForLevel(level int) *int {
	switch level {
	case 1:
		return t.Escalation1Percent
	case 2:
		return t.Escalation2Percent
	case 3:
		return t.Escalation3Percent
	default:
		return nil
	}
}
