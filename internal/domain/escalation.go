package domain

import "time"

// EscalationManagerConfig maps (board, level) to the manager contacted when
// that level is reached. Read-only lookup data.
type EscalationManagerConfig struct {
	BoardID       string
	Level         int
	ManagerUserID string
	ManagerName   string
	NotifyInApp   bool
	NotifyEmail   bool
}

// InternalNotification is an in-app notification row inserted on escalation.
type InternalNotification struct {
	ID        string
	UserID    string
	TicketID  string
	Kind      string
	Title     string
	Body      string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// NotificationKindEscalation marks notifications produced by the escalation
// service.
const NotificationKindEscalation = "SLA_ESCALATION"
