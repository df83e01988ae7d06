package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gigbook/internal/monitoring"
	"github.com/charlesng35/gigbook/pkg/response"
)

// MonitoringHandler surfaces maintenance job status and metrics settings.
type MonitoringHandler struct {
	jobs               *monitoring.JobTracker
	prometheusEnabled  bool
	prometheusEndpoint string
}

// NewMonitoringHandler constructs a monitoring handler.
func NewMonitoringHandler(jobs *monitoring.JobTracker, prometheusEnabled bool, endpoint string) *MonitoringHandler {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	return &MonitoringHandler{jobs: jobs, prometheusEnabled: prometheusEnabled, prometheusEndpoint: endpoint}
}

// Summary returns maintenance job outcomes and where metrics are exposed.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	jobs := h.jobs.Jobs()
	if jobs == nil {
		jobs = []monitoring.JobStatus{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"maintenance": jobs,
		"prometheus": gin.H{
			"enabled":  h.prometheusEnabled,
			"endpoint": h.prometheusEndpoint,
		},
	})
}
