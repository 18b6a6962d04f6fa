package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/logger"
)

type conceptLister interface {
	ConceptList(ctx context.Context) ([]kos.Concept, error)
}

// Reindexer rebuilds the search index from the record store.
type Reindexer struct {
	index   Index
	store   conceptLister
	limiter *rate.Limiter
	log     *slog.Logger

	mu   sync.Mutex
	last Stats
}

// NewReindexer creates a Reindexer throttled to cfg.Search.WriteRate concept writes per second.
func NewReindexer(index Index, store *kos.Store, cfg *config.Config, log *slog.Logger) *Reindexer {
	return newReindexer(index, store, cfg.Search.WriteRate, log)
}

func newReindexer(index Index, store conceptLister, writeRate float64, log *slog.Logger) *Reindexer {
	limit := rate.Inf
	if writeRate > 0 {
		limit = rate.Limit(writeRate)
	}
	return &Reindexer{
		index:   index,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With(logger.Scope("search.reindex")),
	}
}

// Stats summarises one reindex run.
type Stats struct {
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Run drops every language class, recreates it and indexes all stored concepts.
// Individual concept failures are counted and do not abort the run.
func (r *Reindexer) Run(ctx context.Context) (Stats, error) {
	ctx, span := otel.Tracer("github.com/emergent-company/emergent.kos/domain/search").Start(ctx, "search.reindex")
	defer span.End()

	var stats Stats
	start := time.Now()

	if err := r.index.Reset(ctx); err != nil {
		return stats, fmt.Errorf("reset index: %w", err)
	}

	concepts, err := r.store.ConceptList(ctx)
	if err != nil {
		return stats, fmt.Errorf("list concepts: %w", err)
	}

	for i := range concepts {
		if err := r.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if err := r.index.CreateConcept(ctx, &concepts[i]); err != nil {
			stats.Failed++
			kos.SearchSyncFailures.WithLabelValues("reindex").Inc()
			r.log.Warn("concept not indexed", slog.String("iri", concepts[i].IRI), logger.Error(err))
			continue
		}
		stats.Indexed++
	}

	stats.Duration = time.Since(start)
	r.mu.Lock()
	r.last = stats
	r.mu.Unlock()
	span.SetAttributes(attribute.Int("indexed", stats.Indexed), attribute.Int("failed", stats.Failed))
	r.log.Info("reindex complete",
		slog.Int("indexed", stats.Indexed),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// Last returns the stats of the most recent completed run.
func (r *Reindexer) Last() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Task adapts Run to the scheduler.
func (r *Reindexer) Task(ctx context.Context) error {
	_, err := r.Run(ctx)
	return err
}
