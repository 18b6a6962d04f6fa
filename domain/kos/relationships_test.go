package kos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

const (
	conceptX = "http://example.org/c/x"
	conceptY = "http://example.org/c/y"
	conceptZ = "http://example.org/c/z"
)

// At most one edge per (source, target) pair, whatever the predicate.
func TestRelationships_PairUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch})

	_, err := f.rels.Create(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: CloseMatch}})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrDuplicateRelationship))
	assert.Contains(t, err.Error(), "Relationship between source `"+conceptX+"` and target `"+conceptY+"` already exists")

	// The reverse pair is a different edge.
	_, err = f.rels.Create(ctx, []Relationship{{Source: conceptY, Target: conceptX, Predicate: CloseMatch}})
	assert.NoError(t, err)
}

func TestRelationships_DuplicateWithinBatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.rels.Create(t.Context(), []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: ExactMatch},
		{Source: conceptX, Target: conceptY, Predicate: RelatedMatch},
	})
	assert.True(t, apperror.Is(err, apperror.ErrDuplicateRelationship))

	all, err := f.rels.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)
}

// A batch containing one colliding edge writes nothing.
func TestRelationships_BatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch})

	_, err := f.rels.Create(ctx, []Relationship{
		{Source: conceptX, Target: conceptZ, Predicate: ExactMatch},
		{Source: conceptX, Target: conceptY, Predicate: CloseMatch},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), conceptY)

	all, err := f.rels.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptX, Target: conceptY, Predicate: ExactMatch}}, all)
}

// narrower is never stored; it becomes the inverse broader edge.
func TestRelationships_NarrowerNormalized(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA)
	f.concept(t, conceptX, schemeA)
	f.concept(t, conceptY, schemeA)

	created, err := f.rels.Create(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: Narrower}})
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptY, Target: conceptX, Predicate: Broader}}, created)

	got, err := f.rels.Get(ctx, conceptY, true, false)
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptY, Target: conceptX, Predicate: Broader}}, got)

	all, err := f.rels.List(ctx)
	require.NoError(t, err)
	for _, rel := range all {
		assert.NotEqual(t, Narrower, rel.Predicate)
	}
}

func TestRelationships_SelfLoopRejected(t *testing.T) {
	for _, p := range Predicates {
		t.Run(string(p), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.rels.Create(t.Context(), []Relationship{{Source: conceptX, Target: conceptX, Predicate: p}})
			assert.True(t, apperror.Is(err, apperror.ErrSelfReferentialRelationship))
		})
	}
}

func TestRelationships_SchemeEndpointRejected(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)

	tests := []Relationship{
		{Source: conceptX, Target: schemeA, Predicate: Broader},
		{Source: schemeA, Target: conceptX, Predicate: ExactMatch},
	}
	for _, rel := range tests {
		_, err := f.rels.Create(t.Context(), []Relationship{rel})
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.ErrRelationshipReferencesScheme))
		assert.Contains(t, err.Error(), schemeA)
	}
}

// A scheme looping onto itself is reported as a scheme reference, which is checked first.
func TestRelationships_SchemeSelfLoopReportsScheme(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)

	_, err := f.rels.Create(t.Context(), []Relationship{{Source: schemeA, Target: schemeA, Predicate: Broader}})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrRelationshipReferencesScheme))
}

func TestRelationships_UnknownPredicateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	_, err := f.rels.Create(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: "bogus"}})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrValidation))

	all, err := f.rels.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch})
	_, err = f.rels.Update(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: "bogus"}})
	assert.True(t, apperror.Is(err, apperror.ErrValidation))

	got, err := f.rels.Get(ctx, conceptX, true, false)
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptX, Target: conceptY, Predicate: ExactMatch}}, got)
}

// Rows that reach the insert without validation are still held to the schema constraints.
func TestRelationships_InsertConstraintsAuthoritative(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch})

	tests := []struct {
		name string
		rel  Relationship
		kind *apperror.Error
	}{
		{"self loop", Relationship{Source: conceptZ, Target: conceptZ, Predicate: CloseMatch}, apperror.ErrSelfReferentialRelationship},
		{"existing pair", Relationship{Source: conceptX, Target: conceptY, Predicate: CloseMatch}, apperror.ErrDuplicateRelationship},
		{"unknown predicate", Relationship{Source: conceptX, Target: conceptZ, Predicate: "bogus"}, apperror.ErrDatabase},
		{"stored narrower", Relationship{Source: conceptX, Target: conceptZ, Predicate: Narrower}, apperror.ErrDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.rels.insert(ctx, []Relationship{tt.rel})
			require.Error(t, err)
			assert.True(t, apperror.Is(err, tt.kind), err.Error())
		})
	}

	all, err := f.rels.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptX, Target: conceptY, Predicate: ExactMatch}}, all)
}

func TestRelationships_HierarchyAcrossSchemes(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA, schemeB)
	f.concept(t, conceptX, schemeA)
	f.concept(t, conceptY, schemeB)

	_, err := f.rels.Create(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: Broader}})
	assert.True(t, apperror.Is(err, apperror.ErrHierarchicAcrossScheme))

	_, err = f.rels.Create(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: BroadMatch}})
	assert.NoError(t, err)
}

func TestRelationships_DanglingEndpointsAllowed(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA)
	f.concept(t, conceptX, schemeA)

	_, err := f.rels.Create(t.Context(), []Relationship{{Source: conceptX, Target: "http://example.org/c/unknown", Predicate: Broader}})
	assert.NoError(t, err)
}

func TestRelationships_Get(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.edges(t,
		Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch},
		Relationship{Source: conceptZ, Target: conceptX, Predicate: CloseMatch},
	)

	tests := []struct {
		name           string
		source, target bool
		want           []Relationship
	}{
		{"source", true, false, []Relationship{{Source: conceptX, Target: conceptY, Predicate: ExactMatch}}},
		{"target", false, true, []Relationship{{Source: conceptZ, Target: conceptX, Predicate: CloseMatch}}},
		{"both", true, true, []Relationship{
			{Source: conceptX, Target: conceptY, Predicate: ExactMatch},
			{Source: conceptZ, Target: conceptX, Predicate: CloseMatch},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.rels.Get(ctx, conceptX, tt.source, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.rels.Get(ctx, conceptX, false, false)
	assert.True(t, apperror.Is(err, apperror.ErrBadRequest))
}

func TestRelationships_Update(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA, schemeB)
	f.concept(t, conceptX, schemeA)
	f.concept(t, conceptY, schemeB)
	f.edges(t, Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch})

	updated, err := f.rels.Update(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: CloseMatch}})
	require.NoError(t, err)
	assert.Equal(t, []Relationship{{Source: conceptX, Target: conceptY, Predicate: CloseMatch}}, updated)

	got, err := f.rels.Get(ctx, conceptX, true, false)
	require.NoError(t, err)
	assert.Equal(t, CloseMatch, got[0].Predicate)

	_, err = f.rels.Update(ctx, []Relationship{{Source: conceptX, Target: conceptY, Predicate: Broader}})
	assert.True(t, apperror.Is(err, apperror.ErrHierarchicAcrossScheme))

	_, err = f.rels.Update(ctx, []Relationship{{Source: conceptY, Target: conceptX, Predicate: CloseMatch}})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrRelationshipNotFound))
	assert.Contains(t, err.Error(), "Can't update non-existent relationship")

	got, err = f.rels.Get(ctx, conceptX, true, false)
	require.NoError(t, err)
	assert.Equal(t, CloseMatch, got[0].Predicate)
}

func TestRelationships_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.edges(t,
		Relationship{Source: conceptX, Target: conceptY, Predicate: ExactMatch},
		Relationship{Source: conceptY, Target: conceptZ, Predicate: Broader},
	)

	n, err := f.rels.Delete(ctx, []Relationship{
		{Source: conceptX, Target: conceptY, Predicate: ExactMatch},
		{Source: conceptX, Target: conceptZ, Predicate: ExactMatch},
		// predicate must match too
		{Source: conceptY, Target: conceptZ, Predicate: CloseMatch},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// narrower deletes its stored broader inverse
	n, err = f.rels.Delete(ctx, []Relationship{{Source: conceptZ, Target: conceptY, Predicate: Narrower}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := f.rels.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRelationships_KnownConceptSchemes(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	f.schemes(t, schemeA, schemeB, schemeC)
	f.concept(t, conceptX, schemeA, schemeB)
	f.concept(t, conceptY, schemeA)
	f.concept(t, conceptZ, schemeB, schemeC)
	f.edges(t,
		Relationship{Source: conceptX, Target: conceptY, Predicate: Broader},
		Relationship{Source: conceptZ, Target: conceptX, Predicate: Broader},
		Relationship{Source: conceptX, Target: "http://example.org/c/m", Predicate: ExactMatch},
	)

	known, err := f.rels.KnownConceptSchemesForHierarchicalRelationships(ctx, conceptX)
	require.NoError(t, err)
	assert.Equal(t, []string{schemeA, schemeB, schemeC}, known)

	none, err := f.rels.KnownConceptSchemesForHierarchicalRelationships(ctx, "http://example.org/c/m")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRelationships_ShareKnownConceptScheme(t *testing.T) {
	f := newFixture(t)
	f.schemes(t, schemeA, schemeB)
	f.concept(t, conceptX, schemeA)
	f.concept(t, conceptY, schemeB, schemeA)
	f.concept(t, conceptZ, schemeB)

	ok, err := f.rels.ShareKnownConceptScheme(t.Context(), Relationship{Source: conceptX, Target: conceptY})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.rels.ShareKnownConceptScheme(t.Context(), Relationship{Source: conceptX, Target: conceptZ})
	require.NoError(t, err)
	assert.False(t, ok)
}

// A -broader-> B -broader-> C in S yields [B, C]; broadMatch edges and concepts outside S are skipped.
func TestRelationships_BroaderInAscendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	const (
		a = "http://example.org/c/a"
		b = "http://example.org/c/b"
		c = "http://example.org/c/c"
		d = "http://example.org/c/d"
		m = "http://example.org/c/m"
	)
	f.schemes(t, schemeA, schemeB)
	f.concept(t, a, schemeA)
	f.concept(t, b, schemeA)
	f.concept(t, c, schemeA, schemeB)
	f.concept(t, d, schemeB)
	f.concept(t, m, schemeA)
	f.edges(t,
		Relationship{Source: a, Target: b, Predicate: Broader},
		Relationship{Source: b, Target: c, Predicate: Broader},
		Relationship{Source: c, Target: d, Predicate: Broader},
		Relationship{Source: a, Target: m, Predicate: BroadMatch},
	)

	got, err := f.rels.BroaderInAscendingOrder(ctx, a, schemeA)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b, got[0].IRI)
	assert.Equal(t, c, got[1].IRI)

	top, err := f.rels.BroaderInAscendingOrder(ctx, d, schemeB)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestRelationships_BroaderVisitsEachConceptOnce(t *testing.T) {
	f := newFixture(t)
	const (
		a = "http://example.org/c/a"
		b = "http://example.org/c/b"
		c = "http://example.org/c/c"
		d = "http://example.org/c/d"
	)
	f.schemes(t, schemeA)
	for _, iri := range []string{a, b, c, d} {
		f.concept(t, iri, schemeA)
	}
	// diamond: a -> {c, b} -> d
	f.edges(t,
		Relationship{Source: a, Target: c, Predicate: Broader},
		Relationship{Source: a, Target: b, Predicate: Broader},
		Relationship{Source: b, Target: d, Predicate: Broader},
		Relationship{Source: c, Target: d, Predicate: Broader},
	)

	got, err := f.rels.BroaderInAscendingOrder(t.Context(), a, schemeA)
	require.NoError(t, err)
	iris := make([]string, 0, len(got))
	for _, concept := range got {
		iris = append(iris, concept.IRI)
	}
	assert.Equal(t, []string{b, c, d}, iris)
}
