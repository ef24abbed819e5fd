package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
)

func TestNewFallsBackToQueueWithoutWorkflowURL(t *testing.T) {
	port := New(config.BackendConfig{Mode: config.BackendModeWorkflow}, nil, zap.NewNop())
	assert.IsType(t, &Queue{}, port)
}

func TestNewSelectsWorkflowWhenConfigured(t *testing.T) {
	cfg := config.BackendConfig{
		Mode:        config.BackendModeWorkflow,
		WorkflowURL: "http://orchestrator.local",
	}
	port := New(cfg, nil, zap.NewNop())
	assert.IsType(t, &Workflow{}, port)
}

func TestNewDefaultsToQueue(t *testing.T) {
	port := New(config.BackendConfig{Mode: config.BackendModeQueue}, nil, zap.NewNop())
	assert.IsType(t, &Queue{}, port)
}
