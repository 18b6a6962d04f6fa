// Package search keeps a per-language full-text and semantic index of concepts.
package search

import (
	"context"
	"log/slog"

	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

// MaxResults caps every search response.
const MaxResults = 50

// Query is a search request.
type Query struct {
	Text     string
	Language string
	Semantic bool
	// Prefix matches preferred labels starting with Text (suggestions).
	Prefix bool
}

// Result is one matching concept.
type Result struct {
	IRI        string   `json:"iri"`
	PrefLabel  string   `json:"pref_label"`
	AltLabels  []string `json:"alt_labels,omitempty"`
	Definition string   `json:"definition,omitempty"`
	Notations  []string `json:"notations,omitempty"`
}

// Index is the search capability consumed by the API and the reindexer.
type Index interface {
	kos.ConceptIndexer

	Configured() bool
	Initialize(ctx context.Context) error
	Reset(ctx context.Context) error
	Search(ctx context.Context, q Query) ([]Result, error)
	Suggest(ctx context.Context, text, language string) ([]Result, error)
}

// NewIndex returns the Weaviate index when WEAVIATE_URL is set, otherwise an index that
// answers every call with ErrSearchNotConfigured.
func NewIndex(cfg *config.Config, log *slog.Logger) (Index, error) {
	if !cfg.Search.IsConfigured() {
		log.Info("search not configured; search endpoints will return 503")
		return Disabled{}, nil
	}
	return NewWeaviate(cfg.Search, log)
}

// Disabled is the index used without a search backend.
type Disabled struct{}

func (Disabled) Configured() bool { return false }
func (Disabled) Initialize(context.Context) error { return apperror.ErrSearchNotConfigured }
func (Disabled) Reset(context.Context) error { return apperror.ErrSearchNotConfigured }
func (Disabled) CreateConcept(context.Context, *kos.Concept) error { return apperror.ErrSearchNotConfigured }
func (Disabled) UpdateConcept(context.Context, *kos.Concept) error { return apperror.ErrSearchNotConfigured }
func (Disabled) DeleteConcept(context.Context, string) error { return apperror.ErrSearchNotConfigured }
func (Disabled) Search(context.Context, Query) ([]Result, error) { return nil, apperror.ErrSearchNotConfigured }
func (Disabled) Suggest(context.Context, string, string) ([]Result, error) {
	return nil, apperror.ErrSearchNotConfigured
}
