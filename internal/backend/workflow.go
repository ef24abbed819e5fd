package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Workflow is the Port implementation backed by an external durable workflow
// orchestrator, used in the commercially licensed deployment mode. It speaks
// a small JSON API; the orchestrator owns timers and delivers wake-ups
// through its own callback channel.
//
// The HTTP client is stdlib: the orchestrator API is plain JSON-over-HTTP and
// no client library exists for it.
type Workflow struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewWorkflow constructs the orchestrator-backed Port. Construction fails
// when no orchestrator URL is configured; callers fall back to the polling
// queue in that case.
func NewWorkflow(baseURL string, timeout time.Duration, logger *zap.Logger) (*Workflow, error) {
	if baseURL == "" {
		return nil, errors.New("workflow backend: orchestrator URL not configured")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Workflow{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

type trackingRequest struct {
	TicketID              string     `json:"ticket_id"`
	PolicyID              string     `json:"policy_id"`
	StartedAt             time.Time  `json:"started_at"`
	ResponseTimeMinutes   int        `json:"response_time_minutes"`
	ResolutionTimeMinutes int        `json:"resolution_time_minutes"`
	ResponseDueAt         *time.Time `json:"response_due_at,omitempty"`
	ResolutionDueAt       *time.Time `json:"resolution_due_at,omitempty"`
	Escalation1Percent    *int       `json:"escalation1_percent,omitempty"`
	Escalation2Percent    *int       `json:"escalation2_percent,omitempty"`
	Escalation3Percent    *int       `json:"escalation3_percent,omitempty"`
}

// StartTracking opens an SLA workflow for the ticket.
func (w *Workflow) StartTracking(ctx context.Context, tracking Tracking) error {
	body := trackingRequest{
		TicketID:              tracking.TicketID,
		PolicyID:              tracking.PolicyID,
		StartedAt:             tracking.StartedAt,
		ResponseTimeMinutes:   tracking.Target.ResponseTimeMinutes,
		ResolutionTimeMinutes: tracking.Target.ResolutionTimeMinutes,
		ResponseDueAt:         tracking.ResponseDueAt,
		ResolutionDueAt:       tracking.ResolutionDueAt,
		Escalation1Percent:    tracking.Target.Escalation1Percent,
		Escalation2Percent:    tracking.Target.Escalation2Percent,
		Escalation3Percent:    tracking.Target.Escalation3Percent,
	}
	return w.post(ctx, "/api/sla/tracking", body)
}

// Pause signals the workflow to stop its timers.
func (w *Workflow) Pause(ctx context.Context, ticketID string) error {
	return w.post(ctx, "/api/sla/"+ticketID+"/pause", nil)
}

// Resume restarts the workflow timers.
func (w *Workflow) Resume(ctx context.Context, ticketID string) error {
	return w.post(ctx, "/api/sla/"+ticketID+"/resume", nil)
}

// Complete finishes the workflow.
func (w *Workflow) Complete(ctx context.Context, ticketID string) error {
	return w.post(ctx, "/api/sla/"+ticketID+"/complete", nil)
}

// Cancel aborts the workflow and its scheduled timers.
func (w *Workflow) Cancel(ctx context.Context, ticketID string) error {
	return w.post(ctx, "/api/sla/"+ticketID+"/cancel", nil)
}

// Status queries the orchestrator's view of the workflow.
func (w *Workflow) Status(ctx context.Context, ticketID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/api/sla/"+ticketID, nil)
	if err != nil {
		return "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "none", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("workflow backend: status query returned %d", resp.StatusCode)
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Status, nil
}

func (w *Workflow) post(ctx context.Context, path string, body any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("workflow backend: %s returned %d", path, resp.StatusCode)
	}
	return nil
}
