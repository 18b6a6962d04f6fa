package kos

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

func TestService_ConceptCreate(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)

	created, err := f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), nil)
	require.NoError(t, err)
	assert.Equal(t, conceptX, created.IRI)
	assert.Equal(t, []string{conceptX}, f.index.created)

	_, err = f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), nil)
	assert.True(t, apperror.Is(err, apperror.ErrDuplicateIRI))
}

func TestService_ConceptCreateRequiresKnownScheme(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)

	// one known scheme is enough
	_, err := f.svc.ConceptCreate(t.Context(), newConcept(conceptX, schemeB, schemeA), nil)
	require.NoError(t, err)

	_, err = f.svc.ConceptCreate(t.Context(), newConcept(conceptY, schemeB, schemeC), nil)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrConceptSchemesNotInDatabase))
	assert.Contains(t, err.Error(), schemeB)

	_, err = f.store.ConceptGet(t.Context(), conceptY)
	assert.True(t, apperror.Is(err, apperror.ErrConceptNotFound))
}

func TestService_ConceptCreateWithRelationships(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)
	f.concept(t, conceptY, schemeA)
	f.concept(t, conceptZ, schemeA)

	_, err := f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: Broader},
		Relationship{Source: conceptX, Target: conceptZ, Predicate: Narrower}.Normalized(),
	})
	require.NoError(t, err)

	rels, err := f.rels.Get(ctx, conceptX, true, true)
	require.NoError(t, err)
	assert.Equal(t, []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: Broader},
		{Source: conceptZ, Target: conceptX, Predicate: Broader},
	}, rels)
}

// A concept whose inline relationships are rejected leaves nothing behind.
func TestService_ConceptCreateCompensates(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA, schemeB)
	f.concept(t, conceptY, schemeB)

	before := testutil.ToFloat64(CompensationsTotal.WithLabelValues("ok"))

	_, err := f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: Broader},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrHierarchicAcrossScheme))

	_, err = f.svc.ConceptGet(ctx, conceptX)
	assert.True(t, apperror.Is(err, apperror.ErrConceptNotFound))
	assert.Empty(t, f.index.created)
	assert.Equal(t, before+1, testutil.ToFloat64(CompensationsTotal.WithLabelValues("ok")))
}

// An inline broader edge pointing at a concept scheme is rejected and the concept removed; a
// dangling target that is not known at all is accepted.
func TestService_EndToEndInlineRelationship(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)

	_, err := f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), []Relationship{
		{Source: conceptX, Target: schemeA, Predicate: Broader},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrRelationshipReferencesScheme))
	_, err = f.svc.ConceptGet(ctx, conceptX)
	assert.True(t, apperror.Is(err, apperror.ErrConceptNotFound))

	_, err = f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: Broader},
	})
	require.NoError(t, err)
	_, err = f.svc.ConceptGet(ctx, conceptX)
	assert.NoError(t, err)
}

func TestService_ConceptUpdateSchemeRemovalGuard(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA, schemeB, schemeC)
	f.concept(t, conceptX, schemeA, schemeB)
	f.concept(t, conceptY, schemeA)
	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: Broader})

	_, err := f.svc.ConceptUpdate(ctx, newConcept(conceptX, schemeB))
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrRelationshipsInCurrentScheme))
	assert.Contains(t, err.Error(), schemeA)

	stored, err := f.store.ConceptGet(ctx, conceptX)
	require.NoError(t, err)
	assert.Equal(t, nodes(schemeA, schemeB), stored.Schemes)
	assert.Empty(t, f.index.updated)

	updated, err := f.svc.ConceptUpdate(ctx, newConcept(conceptX, schemeA, schemeB, schemeC))
	require.NoError(t, err)
	assert.Equal(t, nodes(schemeA, schemeB, schemeC), updated.Schemes)
	assert.Equal(t, []string{conceptX}, f.index.updated)
}

func TestService_ConceptUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)
	f.concept(t, conceptX, schemeA)

	_, err := f.svc.ConceptUpdate(ctx, newConcept(conceptY, schemeA))
	assert.True(t, apperror.Is(err, apperror.ErrConceptNotFound))

	_, err = f.svc.ConceptUpdate(ctx, newConcept(conceptX, schemeB))
	assert.True(t, apperror.Is(err, apperror.ErrConceptSchemesNotInDatabase))

	withInline := newConcept(conceptX, schemeA)
	withInline.Extra = map[string]any{KeyBroader: []any{map[string]any{"@id": conceptY}}}
	_, err = f.svc.ConceptUpdate(ctx, withInline)
	assert.True(t, apperror.Is(err, apperror.ErrValidation))

	c := newConcept(conceptX, schemeA)
	c.PrefLabels = en("renamed")
	updated, err := f.svc.ConceptUpdate(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.PrefLabel("en"))
}

func TestService_ConceptDelete(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)
	f.concept(t, conceptX, schemeA)

	require.NoError(t, f.svc.ConceptDelete(ctx, conceptX))
	assert.Equal(t, []string{conceptX}, f.index.deleted)

	err := f.svc.ConceptDelete(ctx, conceptX)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrConceptNotFound))
	assert.Len(t, f.index.deleted, 1)
}

func TestService_SearchFailureDoesNotFailWrites(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)
	f.index.err = errors.New("search down")

	before := testutil.ToFloat64(SearchSyncFailures.WithLabelValues("create"))
	_, err := f.svc.ConceptCreate(ctx, newConcept(conceptX, schemeA), nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(SearchSyncFailures.WithLabelValues("create")))

	// not configured is expected and not counted
	f.index.err = apperror.ErrSearchNotConfigured
	before = testutil.ToFloat64(SearchSyncFailures.WithLabelValues("delete"))
	require.NoError(t, f.svc.ConceptDelete(ctx, conceptX))
	assert.Equal(t, before, testutil.ToFloat64(SearchSyncFailures.WithLabelValues("delete")))
}

func TestService_NilIndex(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, f.store, f.rels, nil, quietLogger())
	f.schemes(t, schemeA)

	_, err := svc.ConceptCreate(t.Context(), newConcept(conceptX, schemeA), nil)
	assert.NoError(t, err)
}

func TestService_ConceptsForScheme(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)
	f.concept(t, conceptX, schemeA)

	got, err := f.svc.ConceptsForScheme(t.Context(), schemeA, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.ConceptsForScheme(t.Context(), schemeB, false)
	assert.True(t, apperror.Is(err, apperror.ErrConceptSchemeNotFound))
}

func TestService_DeleteMissingOfEveryKind(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	const missing = "http://example.org/missing"

	assert.True(t, apperror.Is(f.svc.ConceptSchemeDelete(ctx, missing), apperror.ErrConceptSchemeNotFound))
	assert.True(t, apperror.Is(f.svc.CorrespondenceDelete(ctx, missing), apperror.ErrCorrespondenceNotFound))
	assert.True(t, apperror.Is(f.svc.AssociationDelete(ctx, missing), apperror.ErrAssociationNotFound))
}

func TestService_CorrespondenceIgnoresSubmittedMadeOfs(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	const corr = "http://example.org/corr"

	created, err := f.svc.CorrespondenceCreate(ctx, &Correspondence{
		IRI: corr, Compares: nodes(schemeA), MadeOfs: nodes("x:smuggled"),
	})
	require.NoError(t, err)
	assert.Empty(t, created.MadeOfs)

	_, err = f.svc.MadeOfAdd(ctx, MadeOf{Correspondence: corr, Associations: nodes("x:1")})
	require.NoError(t, err)

	updated, err := f.svc.CorrespondenceUpdate(ctx, &Correspondence{
		IRI: corr, Compares: nodes(schemeA, schemeB), MadeOfs: nodes("x:other"),
	})
	require.NoError(t, err)
	assert.Equal(t, nodes("x:1"), updated.MadeOfs)

	removed, err := f.svc.MadeOfRemove(ctx, MadeOf{Correspondence: corr, Associations: nodes("x:1")})
	require.NoError(t, err)
	assert.Empty(t, removed.MadeOfs)
}

func TestService_OperationMetrics(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)

	okBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues("concept_create", "ok"))
	failBefore := testutil.ToFloat64(OperationsTotal.WithLabelValues("concept_create", "duplicate_iri"))

	_, err := f.svc.ConceptCreate(t.Context(), newConcept(conceptX, schemeA), nil)
	require.NoError(t, err)
	_, err = f.svc.ConceptCreate(t.Context(), newConcept(conceptX, schemeA), nil)
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("concept_create", "ok")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(OperationsTotal.WithLabelValues("concept_create", "duplicate_iri")))
}
