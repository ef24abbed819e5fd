package backend

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/config"
)

// New selects the Port implementation from deployment configuration. When the
// workflow backend is requested but cannot be constructed, the polling queue
// is used instead so SLA tracking still succeeds.
func New(cfg config.BackendConfig, client *redis.Client, logger *zap.Logger) Port {
	if cfg.Mode == config.BackendModeWorkflow {
		workflow, err := NewWorkflow(cfg.WorkflowURL, cfg.WorkflowTimeout(), logger)
		if err == nil {
			logger.Info("using workflow durable backend", zap.String("url", cfg.WorkflowURL))
			return workflow
		}
		logger.Warn("workflow backend unavailable, falling back to queue", zap.Error(err))
	}
	return NewQueue(client, logger)
}
