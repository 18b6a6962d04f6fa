package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emergent-company/emergent.kos/domain/scheduler"
)

// MetricsHandler exposes Prometheus metrics and scheduler state.
type MetricsHandler struct {
	scheduler *scheduler.Scheduler
	metrics   http.Handler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(s *scheduler.Scheduler) *MetricsHandler {
	return &MetricsHandler{
		scheduler: s,
		metrics:   promhttp.Handler(),
	}
}

// SchedulerMetrics reports the registered tasks.
type SchedulerMetrics struct {
	Running bool     `json:"running"`
	Tasks   []string `json:"tasks"`
}

// Prometheus serves the default registry, which holds the kos_* and Go runtime collectors.
func (m *MetricsHandler) Prometheus(c echo.Context) error {
	m.metrics.ServeHTTP(c.Response(), c.Request())
	return nil
}

// Scheduler handles GET /api/metrics/scheduler
func (m *MetricsHandler) Scheduler(c echo.Context) error {
	return c.JSON(http.StatusOK, SchedulerMetrics{
		Running: m.scheduler.IsRunning(),
		Tasks:   m.scheduler.ListTasks(),
	})
}
