package search

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/domain/scheduler"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/logger"
)

// reindexTaskName is the scheduler entry of the periodic full reindex.
const reindexTaskName = "search_reindex"

// Module provides the search index, keeps it in sync with the KOS service and serves search routes.
var Module = fx.Module("search",
	fx.Provide(
		NewIndex,
		func(ix Index) kos.ConceptIndexer { return ix },
		NewReindexer,
		NewHandler,
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterIndexLifecycle,
		RegisterReindexTask,
	),
)

// RegisterIndexLifecycle creates missing language classes on startup. A search backend that is
// down at startup only degrades search.
func RegisterIndexLifecycle(lc fx.Lifecycle, index Index, log *slog.Logger) {
	if !index.Configured() {
		return
	}
	log = log.With(logger.Scope("search"))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := index.Initialize(ctx); err != nil {
				log.Warn("search index initialization failed", logger.Error(err))
			}
			return nil
		},
	})
}

// RegisterReindexTask schedules the full reindex on SEARCH_REINDEX_SCHEDULE.
func RegisterReindexTask(s *scheduler.Scheduler, index Index, r *Reindexer, cfg *config.Config) error {
	if !index.Configured() || cfg.Search.ReindexSchedule == "" {
		return nil
	}
	return s.AddCronTask(reindexTaskName, cfg.Search.ReindexSchedule, r.Task)
}
