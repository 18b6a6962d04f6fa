package search

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.kos/domain/scheduler"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

const defaultLanguage = "en"

// Handler serves search and suggestion requests.
type Handler struct {
	index     Index
	reindexer *Reindexer
	scheduler *scheduler.Scheduler
}

// NewHandler creates a new search handler.
func NewHandler(index Index, reindexer *Reindexer, sched *scheduler.Scheduler) *Handler {
	return &Handler{index: index, reindexer: reindexer, scheduler: sched}
}

func queryParams(c echo.Context) (text, language string, err error) {
	text = strings.TrimSpace(c.QueryParam("query"))
	if text == "" {
		return "", "", apperror.ErrBadRequest.WithMessage("query is required")
	}
	language = c.QueryParam("language")
	if language == "" {
		language = defaultLanguage
	}
	return text, language, nil
}

// Search handles GET /v1/concepts/search?query=&language=&semantic=
func (h *Handler) Search(c echo.Context) error {
	text, language, err := queryParams(c)
	if err != nil {
		return err
	}
	semantic := false
	if raw := c.QueryParam("semantic"); raw != "" {
		semantic, err = strconv.ParseBool(raw)
		if err != nil {
			return apperror.ErrBadRequest.WithMessage("semantic must be a boolean")
		}
	}
	results, err := h.index.Search(c.Request().Context(), Query{Text: text, Language: language, Semantic: semantic})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// Suggest handles GET /v1/concepts/suggest?query=&language=
func (h *Handler) Suggest(c echo.Context) error {
	text, language, err := queryParams(c)
	if err != nil {
		return err
	}
	results, err := h.index.Suggest(c.Request().Context(), text, language)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

// Reindex handles POST /v1/search/reindex. When the periodic reindex is scheduled the run goes
// through the scheduler, so it cannot overlap a cron run.
func (h *Handler) Reindex(c echo.Context) error {
	if !h.index.Configured() {
		return apperror.ErrSearchNotConfigured
	}
	ctx := c.Request().Context()

	err := h.scheduler.RunNow(ctx, reindexTaskName)
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		stats, err := h.reindexer.Run(ctx)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, stats)
	case errors.Is(err, scheduler.ErrTaskRunning):
		return apperror.ErrReindexInProgress
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, h.reindexer.Last())
}
