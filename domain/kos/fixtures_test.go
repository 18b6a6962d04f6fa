package kos

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/emergent-company/emergent.kos/internal/testutil"
)

const (
	schemeA = "http://example.org/scheme/a"
	schemeB = "http://example.org/scheme/b"
	schemeC = "http://example.org/scheme/c"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db    *bun.DB
	store *Store
	rels  *Relationships
	svc   *Service
	index *recordingIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	log := quietLogger()
	store := NewStore(db, log)
	rels := NewRelationships(db, store, log)
	index := &recordingIndex{}
	return &fixture{
		db:    db,
		store: store,
		rels:  rels,
		svc:   NewService(db, store, rels, index, log),
		index: index,
	}
}

func en(v string) []Literal {
	return []Literal{{Value: v, Language: "en"}}
}

func nodes(iris ...string) []Node {
	out := make([]Node, 0, len(iris))
	for _, iri := range iris {
		out = append(out, Node{ID: iri})
	}
	return out
}

func newScheme(iri string) *ConceptScheme {
	return &ConceptScheme{
		IRI:         iri,
		Types:       []string{TypeConceptScheme},
		Descriptive: Descriptive{PrefLabels: en("Scheme " + iri), Definitions: en("A scheme")},
		Created:     []Literal{{Value: "2024-01-01T00:00:00Z", Type: TypeDateTime}},
		Version:     []Literal{{Value: "1"}},
	}
}

func newConcept(iri string, schemes ...string) *Concept {
	return &Concept{
		IRI:         iri,
		Types:       []string{TypeConcept},
		Descriptive: Descriptive{PrefLabels: en("Concept " + iri)},
		Schemes:     nodes(schemes...),
	}
}

func (f *fixture) schemes(t *testing.T, iris ...string) {
	t.Helper()
	for _, iri := range iris {
		_, err := f.store.ConceptSchemeCreate(t.Context(), newScheme(iri))
		require.NoError(t, err)
	}
}

func (f *fixture) concept(t *testing.T, iri string, schemes ...string) *Concept {
	t.Helper()
	c, err := f.store.ConceptCreate(t.Context(), newConcept(iri, schemes...))
	require.NoError(t, err)
	return c
}

func (f *fixture) edges(t *testing.T, rels ...Relationship) {
	t.Helper()
	_, err := f.rels.Create(t.Context(), rels)
	require.NoError(t, err)
}

// recordingIndex records the concept changes forwarded by the service.
type recordingIndex struct {
	created []string
	updated []string
	deleted []string
	err     error
}

func (r *recordingIndex) CreateConcept(_ context.Context, c *Concept) error {
	r.created = append(r.created, c.IRI)
	return r.err
}

func (r *recordingIndex) UpdateConcept(_ context.Context, c *Concept) error {
	r.updated = append(r.updated, c.IRI)
	return r.err
}

func (r *recordingIndex) DeleteConcept(_ context.Context, iri string) error {
	r.deleted = append(r.deleted, iri)
	return r.err
}
