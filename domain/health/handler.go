package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/emergent-company/emergent.kos/domain/search"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/internal/version"
)

// Pinger reports database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler handles health check requests
type Handler struct {
	db      Pinger
	index   search.Index
	cfg     *config.Config
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(db *bun.DB, index search.Index, cfg *config.Config) *Handler {
	return newHandler(db, index, cfg)
}

func newHandler(db Pinger, index search.Index, cfg *config.Config) *Handler {
	return &Handler{
		db:      db,
		index:   index,
		cfg:     cfg,
		startAt: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   version.Info     `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health returns the overall service health. Only the database decides the status code;
// a missing search backend is reported as disabled.
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	db := Check{Status: "healthy"}
	if err := h.db.PingContext(ctx); err != nil {
		db = Check{Status: "unhealthy", Message: err.Error()}
	}

	searchCheck := Check{Status: "disabled"}
	if h.index.Configured() {
		searchCheck = Check{Status: "configured"}
	}

	response := HealthResponse{
		Status:    db.Status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Get(),
		Checks: map[string]Check{
			"database": db,
			"search":   searchCheck,
		},
	}

	statusCode := http.StatusOK
	if db.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, response)
}

// Healthz returns a simple health check (k8s liveness)
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (k8s readiness)
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug returns runtime information outside production.
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return c.JSON(http.StatusOK, map[string]any{
		"environment": h.cfg.Environment,
		"debug":       h.cfg.Debug,
		"go_version":  runtime.Version(),
		"goroutines":  runtime.NumGoroutine(),
		"memory": map[string]any{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"database": map[string]any{
			"host":     h.cfg.Database.Host,
			"port":     h.cfg.Database.Port,
			"database": h.cfg.Database.Database,
		},
		"search_languages": h.cfg.Search.Languages,
	})
}
