package domain

// StatusPauseConfig marks ticket statuses that freeze the SLA clock.
type StatusPauseConfig struct {
	StatusID  string
	PausesSLA bool
}

// SLASettings are tenant-level toggles for pause behavior.
type SLASettings struct {
	// PauseOnAwaitingClient pauses the clock while the ticket waits on the
	// client. Defaults to true when no settings row exists.
	PauseOnAwaitingClient bool
}

// DefaultSLASettings returns the settings applied when none are stored.
func DefaultSLASettings() SLASettings {
	return SLASettings{PauseOnAwaitingClient: true}
}
