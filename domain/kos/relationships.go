package kos

import (
	"context"
	"log/slog"
	"sort"

	"github.com/uptrace/bun"

	"github.com/emergent-company/emergent.kos/internal/database"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
	"github.com/emergent-company/emergent.kos/pkg/logger"
	"github.com/emergent-company/emergent.kos/pkg/pgutils"
)

const (
	pairConstraint     = "relationship_source_target_uniqueness"
	selfLoopConstraint = "relationship_no_self_loop"
)

// Relationships owns the relationship edge set and the rules governing it.
type Relationships struct {
	db    bun.IDB
	store *Store
	log   *slog.Logger
}

// NewRelationships creates the relationship integrity engine
func NewRelationships(db bun.IDB, store *Store, log *slog.Logger) *Relationships {
	return &Relationships{
		db:    db,
		store: store,
		log:   log.With(logger.Scope("kos.relationships")),
	}
}

// WithDB returns an engine bound to db, typically a transaction.
func (r *Relationships) WithDB(db bun.IDB) *Relationships {
	return &Relationships{db: db, store: r.store.WithDB(db), log: r.log}
}

func duplicateRelationship(rel Relationship) *apperror.Error {
	return apperror.ErrDuplicateRelationship.WithMessagef(
		"Relationship between source `%s` and target `%s` already exists", rel.Source, rel.Target)
}

func selfLoop(rel Relationship) *apperror.Error {
	return apperror.ErrSelfReferentialRelationship.WithMessagef(
		"Relationship source and target are both `%s`", rel.Source)
}

// selfLoopIn names the offending edge when the schema rejected a self loop.
func selfLoopIn(rels []Relationship) *apperror.Error {
	for _, rel := range rels {
		if rel.Source == rel.Target {
			return selfLoop(rel)
		}
	}
	return apperror.ErrSelfReferentialRelationship
}

func strip(rels []Relationship) []Relationship {
	out := make([]Relationship, len(rels))
	for i, rel := range rels {
		out[i] = Relationship{Source: rel.Source, Target: rel.Target, Predicate: rel.Predicate}
	}
	return out
}

func normalizeAll(rels []Relationship) []Relationship {
	out := make([]Relationship, len(rels))
	for i, rel := range rels {
		out[i] = rel.Normalized()
	}
	return out
}

// Get returns edges where iri is the source (source=true) and/or the target (target=true).
func (r *Relationships) Get(ctx context.Context, iri string, source, target bool) ([]Relationship, error) {
	if !source && !target {
		return nil, apperror.ErrBadRequest.WithMessage("At least one of `source` and `target` must be true")
	}
	var rels []Relationship
	q := r.db.NewSelect().Model(&rels)
	switch {
	case source && target:
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("source = ?", iri).WhereOr("target = ?", iri)
		})
	case source:
		q = q.Where("source = ?", iri)
	default:
		q = q.Where("target = ?", iri)
	}
	if err := q.Order("source ASC", "target ASC").Scan(ctx); err != nil {
		r.log.Error("failed to get relationships", logger.Error(err), slog.String("iri", iri))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return strip(rels), nil
}

// List returns every edge ordered by source and target.
func (r *Relationships) List(ctx context.Context) ([]Relationship, error) {
	var rels []Relationship
	if err := r.db.NewSelect().Model(&rels).Order("source ASC", "target ASC").Scan(ctx); err != nil {
		r.log.Error("failed to list relationships", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return strip(rels), nil
}

// validate runs the creation rules against every edge before anything is written:
// no self loops, no concept scheme endpoints, hierarchical edges only within a shared scheme.
func (r *Relationships) validate(ctx context.Context, rels []Relationship) error {
	schemes, err := r.store.ConceptSchemeIRIs(ctx)
	if err != nil {
		return err
	}
	endpoints := make([]string, 0, 2*len(rels))
	for _, rel := range rels {
		if !rel.Predicate.Valid() {
			return apperror.ErrValidation.WithMessagef(
				"Unknown relationship predicate `%s`", rel.Predicate).
				WithDetails(map[string]any{"predicate": string(rel.Predicate)})
		}
		for _, iri := range []string{rel.Source, rel.Target} {
			if _, ok := schemes[iri]; ok {
				return apperror.ErrRelationshipReferencesScheme.WithMessagef(
					"Relationship between source `%s` and target `%s` references Concept Scheme `%s`; relationships must be between concepts",
					rel.Source, rel.Target, iri)
			}
		}
		if rel.Source == rel.Target {
			return selfLoop(rel)
		}
		endpoints = append(endpoints, rel.Source, rel.Target)
	}

	concepts, err := r.store.ConceptsByIRIs(ctx, endpoints)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if rel.Predicate.IsHierarchical() && !shareScheme(concepts, rel) {
			return apperror.ErrHierarchicAcrossScheme.WithMessagef(
				"Hierarchical relationship between source `%s` and target `%s` crosses Concept Schemes; the concepts share no Concept Scheme",
				rel.Source, rel.Target)
		}
	}
	return nil
}

// shareScheme is true when either endpoint is not a known concept, or both concepts share a scheme.
func shareScheme(concepts map[string]*Concept, rel Relationship) bool {
	src, ok := concepts[rel.Source]
	if !ok {
		return true
	}
	tgt, ok := concepts[rel.Target]
	if !ok {
		return true
	}
	for _, a := range src.Schemes {
		if containsNode(tgt.Schemes, a.ID) {
			return true
		}
	}
	return false
}

// ShareKnownConceptScheme reports whether a hierarchical edge between rel's endpoints is allowed.
func (r *Relationships) ShareKnownConceptScheme(ctx context.Context, rel Relationship) (bool, error) {
	concepts, err := r.store.ConceptsByIRIs(ctx, []string{rel.Source, rel.Target})
	if err != nil {
		return false, err
	}
	return shareScheme(concepts, rel), nil
}

// Create validates and inserts the edges in one statement, so a batch is all or nothing.
// narrower edges are stored as their inverse broader edge.
func (r *Relationships) Create(ctx context.Context, rels []Relationship) ([]Relationship, error) {
	rels = normalizeAll(rels)
	if len(rels) == 0 {
		return []Relationship{}, nil
	}

	seen := make(map[[2]string]struct{}, len(rels))
	for _, rel := range rels {
		if _, dup := seen[rel.Pair()]; dup {
			return nil, duplicateRelationship(rel)
		}
		seen[rel.Pair()] = struct{}{}
	}

	if err := r.validate(ctx, rels); err != nil {
		return nil, err
	}

	if err := r.insert(ctx, rels); err != nil {
		return nil, err
	}

	r.log.Debug("relationships created", slog.Int("count", len(rels)))
	return strip(rels), nil
}

// insert writes rels in one statement. The schema constraints are authoritative: a pair or self
// loop that slipped past validation is still reported as the matching KOS error.
func (r *Relationships) insert(ctx context.Context, rels []Relationship) error {
	rows := strip(rels)
	_, err := r.db.NewInsert().Model(&rows).Exec(ctx)
	switch {
	case err == nil:
		return nil
	case pgutils.IsUniqueViolation(err) || pgutils.ViolatesConstraint(err, pairConstraint, "relationship.source", "relationship.target"):
		return r.identifyDuplicate(ctx, rels, err)
	case pgutils.IsCheckViolation(err) && pgutils.ViolatesConstraint(err, selfLoopConstraint):
		return selfLoopIn(rels).WithInternal(err)
	default:
		r.log.Error("failed to create relationships", logger.Error(err), slog.Int("count", len(rels)))
		return apperror.ErrDatabase.WithInternal(err)
	}
}

// identifyDuplicate re-queries each submitted pair to name the one that collided.
func (r *Relationships) identifyDuplicate(ctx context.Context, rels []Relationship, cause error) error {
	for _, rel := range rels {
		n, err := r.countPair(ctx, rel)
		if err != nil {
			return err
		}
		if n > 0 {
			return duplicateRelationship(rel).WithInternal(cause)
		}
	}
	return apperror.ErrDuplicateRelationship.WithInternal(cause)
}

func (r *Relationships) countPair(ctx context.Context, rel Relationship) (int, error) {
	n, err := r.db.NewSelect().
		Model((*Relationship)(nil)).
		Where("source = ?", rel.Source).
		Where("target = ?", rel.Target).
		Count(ctx)
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return n, nil
}

// Update changes the predicate of existing edges. Every pair must exist; hierarchical
// predicates are held to the shared scheme rule.
func (r *Relationships) Update(ctx context.Context, rels []Relationship) ([]Relationship, error) {
	rels = normalizeAll(rels)
	err := database.InTx(ctx, r.db, func(tx bun.IDB) error {
		e := r.WithDB(tx)
		for _, rel := range rels {
			n, err := e.countPair(ctx, rel)
			if err != nil {
				return err
			}
			if n == 0 {
				return apperror.ErrRelationshipNotFound.WithMessagef(
					"Can't update non-existent relationship between source `%s` and target `%s`", rel.Source, rel.Target)
			}
		}
		if err := e.validate(ctx, rels); err != nil {
			return err
		}
		for _, rel := range rels {
			_, err := tx.NewUpdate().
				Model((*Relationship)(nil)).
				Set("predicate = ?", rel.Predicate).
				Where("source = ?", rel.Source).
				Where("target = ?", rel.Target).
				Exec(ctx)
			if err != nil {
				e.log.Error("failed to update relationship", logger.Error(err))
				return apperror.ErrDatabase.WithInternal(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return strip(rels), nil
}

// Delete removes matching (source, target, predicate) triples and returns how many rows went.
// Missing edges are ignored.
func (r *Relationships) Delete(ctx context.Context, rels []Relationship) (int, error) {
	rels = normalizeAll(rels)
	total := 0
	err := database.InTx(ctx, r.db, func(tx bun.IDB) error {
		for _, rel := range rels {
			res, err := tx.NewDelete().
				Model((*Relationship)(nil)).
				Where("source = ?", rel.Source).
				Where("target = ?", rel.Target).
				Where("predicate = ?", rel.Predicate).
				Exec(ctx)
			if err != nil {
				r.log.Error("failed to delete relationship", logger.Error(err))
				return apperror.ErrDatabase.WithInternal(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperror.ErrDatabase.WithInternal(err)
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// KnownConceptSchemesForHierarchicalRelationships returns the sorted union of the schemes of
// every concept joined to iri by a hierarchical edge.
func (r *Relationships) KnownConceptSchemesForHierarchicalRelationships(ctx context.Context, iri string) ([]string, error) {
	var rels []Relationship
	err := r.db.NewSelect().
		Model(&rels).
		Where("predicate IN (?)", bun.In(HierarchicalPredicates())).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("source = ?", iri).WhereOr("target = ?", iri)
		}).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load hierarchical relationships", logger.Error(err), slog.String("iri", iri))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	neighbours := make([]string, 0, len(rels))
	for _, rel := range rels {
		if rel.Source == iri {
			neighbours = append(neighbours, rel.Target)
		} else {
			neighbours = append(neighbours, rel.Source)
		}
	}
	concepts, err := r.store.ConceptsByIRIs(ctx, neighbours)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, c := range concepts {
		for _, s := range c.Schemes {
			set[s.ID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// BroaderInAscendingOrder walks broader edges level by level from start, keeping only
// concepts in scheme. The immediate broader concepts come first; each concept appears once.
func (r *Relationships) BroaderInAscendingOrder(ctx context.Context, start, scheme string) ([]Concept, error) {
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	var out []Concept

	for len(frontier) > 0 {
		var rels []Relationship
		err := r.db.NewSelect().
			Model(&rels).
			Where("source IN (?)", bun.In(frontier)).
			Where("predicate = ?", Broader).
			Scan(ctx)
		if err != nil {
			r.log.Error("failed to walk broader relationships", logger.Error(err), slog.String("iri", start))
			return nil, apperror.ErrDatabase.WithInternal(err)
		}

		var candidates []string
		for _, rel := range rels {
			if _, ok := visited[rel.Target]; ok {
				continue
			}
			visited[rel.Target] = struct{}{}
			candidates = append(candidates, rel.Target)
		}
		sort.Strings(candidates)

		concepts, err := r.store.ConceptsByIRIs(ctx, candidates)
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, iri := range candidates {
			c, ok := concepts[iri]
			if !ok || !containsNode(c.Schemes, scheme) {
				continue
			}
			out = append(out, *c)
			frontier = append(frontier, iri)
		}
	}
	return nonNil(out), nil
}
