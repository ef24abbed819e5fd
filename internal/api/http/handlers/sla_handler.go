package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// SLAHandler exposes the read-only SLA status projection and the pause
// reconciliation hook for the surrounding ticketing system.
type SLAHandler struct {
	timers *service.TimerService
	pauses *service.PauseService
}

// NewSLAHandler constructs handler.
func NewSLAHandler(timers *service.TimerService, pauses *service.PauseService) *SLAHandler {
	return &SLAHandler{timers: timers, pauses: pauses}
}

// GetStatus GET /api/tickets/:id/sla.
func (h *SLAHandler) GetStatus(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}

	status, err := h.timers.Status(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	if status == nil {
		return apperrors.NewNotFound("sla status", map[string]any{"ticket_id": ticketID})
	}

	return c.JSON(fiber.Map{"data": dto.SLAStatusResponse{
		Status:                     status.Status,
		ResponseRemainingMinutes:   status.ResponseRemainingMinutes,
		ResolutionRemainingMinutes: status.ResolutionRemainingMinutes,
		TotalPauseMinutes:          status.TotalPauseMinutes,
		PausedAt:                   status.PausedAt,
		EscalationLevel:            status.EscalationLevel,
		Escalated:                  status.Escalated,
	}})
}

// SyncPauseState POST /api/tickets/:id/sla/sync.
func (h *SLAHandler) SyncPauseState(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	if ticketID == "" {
		return apperrors.NewValidationError("ticket id required", nil)
	}

	if err := h.pauses.SyncPauseState(c.UserContext(), ticketID); err != nil {
		return err
	}
	stats, err := h.pauses.Stats(c.UserContext(), ticketID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.SyncResponse{Synced: true, IsPaused: stats.IsPaused}})
}
