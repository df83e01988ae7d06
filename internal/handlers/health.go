package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/monitoring"
)

// HealthHandler renders liveness and readiness reports.
type HealthHandler struct {
	manager *monitoring.HealthManager
	enabled bool
}

// NewHealthHandler constructs a health handler. A disabled handler answers 404.
func NewHealthHandler(manager *monitoring.HealthManager, enabled bool) *HealthHandler {
	return &HealthHandler{manager: manager, enabled: enabled && manager != nil}
}

// Summary reports the overall readiness status without per-check details.
func (h *HealthHandler) Summary(c *gin.Context) {
	if !h.enabled {
		disabledHealth(c)
		return
	}
	report := h.manager.EvaluateReadiness(requestContext(c))
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checked_at": time.Now().UTC(),
	})
}

// Live reports liveness probes.
func (h *HealthHandler) Live(c *gin.Context) {
	if !h.enabled {
		disabledHealth(c)
		return
	}
	writeHealthReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Ready reports readiness probes.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.enabled {
		disabledHealth(c)
		return
	}
	writeHealthReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func disabledHealth(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}

func reportStatus(report monitoring.HealthReport) int {
	if !report.Success {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	c.JSON(reportStatus(report), gin.H{
		"success":    report.Success,
		"status":     report.Status,
		"checks":     report.Checks,
		"checked_at": time.Now().UTC(),
	})
}
