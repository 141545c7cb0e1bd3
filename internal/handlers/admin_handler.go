package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/rail-booking-backend/internal/services"
)

// CleanupRunner runs the reservation sweep on demand
type CleanupRunner interface {
	RunOnce(ctx context.Context) *services.SweepReport
	LastRun() *services.SweepReport
}

// AdminHandler exposes operational endpoints to admins
type AdminHandler struct {
	cleanup CleanupRunner
	logger  *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(cleanup CleanupRunner, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{cleanup: cleanup, logger: logger}
}

// RunCleanup handles POST /api/v1/admin/cleanup/run
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	report := h.cleanup.RunOnce(c.Request.Context())

	status := http.StatusOK
	switch {
	case report.Skipped:
		status = http.StatusAccepted
	case len(report.Errors) > 0:
		status = http.StatusInternalServerError
		h.logger.WithField("errors", report.Errors).Warn("Manual cleanup finished with errors")
	}

	c.JSON(status, report)
}

// LastCleanup handles GET /api/v1/admin/cleanup/last
func (h *AdminHandler) LastCleanup(c *gin.Context) {
	report := h.cleanup.LastRun()
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "No cleanup has run yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}
