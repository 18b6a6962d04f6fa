package search

import (
	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.kos/domain/kos"
)

// RegisterRoutes registers search routes.
func RegisterRoutes(e *echo.Echo, h *Handler, guard *kos.WriteGuard) {
	e.GET("/v1/concepts/search", h.Search)
	e.GET("/v1/concepts/suggest", h.Suggest)
	e.POST("/v1/search/reindex", h.Reindex, guard.Require())
}
