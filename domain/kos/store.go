package kos

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/emergent-company/emergent.kos/internal/database"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
	"github.com/emergent-company/emergent.kos/pkg/logger"
	"github.com/emergent-company/emergent.kos/pkg/pgutils"
)

// Store persists the four entity kinds keyed by IRI.
type Store struct {
	db  bun.IDB
	log *slog.Logger
}

// NewStore creates a new record store
func NewStore(db bun.IDB, log *slog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With(logger.Scope("kos.store")),
	}
}

// WithDB returns a store bound to db, typically a transaction.
func (s *Store) WithDB(db bun.IDB) *Store {
	return &Store{db: db, log: s.log}
}

type recordKind struct {
	kind     Kind
	label    string
	notFound *apperror.Error
}

var (
	conceptRecord        = recordKind{KindConcept, "Concept", apperror.ErrConceptNotFound}
	conceptSchemeRecord  = recordKind{KindConceptScheme, "Concept Scheme", apperror.ErrConceptSchemeNotFound}
	correspondenceRecord = recordKind{KindCorrespondence, "Correspondence", apperror.ErrCorrespondenceNotFound}
	associationRecord    = recordKind{KindAssociation, "Association", apperror.ErrAssociationNotFound}
)

func (k recordKind) missing(iri string) *apperror.Error {
	return k.notFound.WithMessagef("%s with IRI `%s` not found", k.label, iri)
}

func (k recordKind) duplicate(iri string) *apperror.Error {
	return apperror.ErrDuplicateIRI.WithMessagef("%s with IRI `%s` already exists", k.label, iri)
}

func getRecord[T any](ctx context.Context, s *Store, k recordKind, iri string) (*T, error) {
	m := new(T)
	err := s.db.NewSelect().
		Model(m).
		Where("iri = ?", iri).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, k.missing(iri)
	}
	if err != nil {
		s.log.Error("failed to get record", logger.Error(err), slog.String("kind", string(k.kind)), slog.String("iri", iri))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return m, nil
}

func recordExists[T any](ctx context.Context, s *Store, iri string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*T)(nil)).
		Where("iri = ?", iri).
		Exists(ctx)
	if err != nil {
		return false, apperror.ErrDatabase.WithInternal(err)
	}
	return ok, nil
}

// createRecord checks for an existing IRI first for a clear error; the primary key is the
// authority when two creators race.
func createRecord[T any](ctx context.Context, s *Store, k recordKind, iri string, m *T) error {
	exists, err := recordExists[T](ctx, s, iri)
	if err != nil {
		return err
	}
	if exists {
		return k.duplicate(iri)
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		if pgutils.IsUniqueViolation(err) {
			return k.duplicate(iri)
		}
		s.log.Error("failed to create record", logger.Error(err), slog.String("kind", string(k.kind)), slog.String("iri", iri))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

func updateRecord[T any](ctx context.Context, s *Store, k recordKind, iri string, m *T, exclude ...string) error {
	q := s.db.NewUpdate().
		Model(m).
		WherePK()
	if len(exclude) > 0 {
		q = q.ExcludeColumn(exclude...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		s.log.Error("failed to update record", logger.Error(err), slog.String("kind", string(k.kind)), slog.String("iri", iri))
		return apperror.ErrDatabase.WithInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return k.missing(iri)
	}
	return nil
}

func deleteRecord[T any](ctx context.Context, s *Store, k recordKind, iri string) (int, error) {
	res, err := s.db.NewDelete().
		Model((*T)(nil)).
		Where("iri = ?", iri).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to delete record", logger.Error(err), slog.String("kind", string(k.kind)), slog.String("iri", iri))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.ErrDatabase.WithInternal(err)
	}
	return int(n), nil
}

func listRecords[T any](ctx context.Context, s *Store, k recordKind) ([]T, error) {
	var out []T
	err := s.db.NewSelect().
		Model(&out).
		Order("iri ASC").
		Scan(ctx)
	if err != nil {
		s.log.Error("failed to list records", logger.Error(err), slog.String("kind", string(k.kind)))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return nonNil(out), nil
}

// ConceptGet returns the concept with the given IRI.
func (s *Store) ConceptGet(ctx context.Context, iri string) (*Concept, error) {
	return getRecord[Concept](ctx, s, conceptRecord, iri)
}

// ConceptCreate inserts a new concept; DuplicateIRI if it exists.
func (s *Store) ConceptCreate(ctx context.Context, c *Concept) (*Concept, error) {
	c.normalize()
	if err := createRecord(ctx, s, conceptRecord, c.IRI, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConceptUpdate replaces every field of an existing concept.
func (s *Store) ConceptUpdate(ctx context.Context, c *Concept) (*Concept, error) {
	c.normalize()
	if err := updateRecord(ctx, s, conceptRecord, c.IRI, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConceptDelete removes a concept and returns the number of rows removed.
func (s *Store) ConceptDelete(ctx context.Context, iri string) (int, error) {
	return deleteRecord[Concept](ctx, s, conceptRecord, iri)
}

// ConceptList returns every concept ordered by IRI.
func (s *Store) ConceptList(ctx context.Context) ([]Concept, error) {
	return listRecords[Concept](ctx, s, conceptRecord)
}

// ConceptsByIRIs loads the concepts among iris that exist, keyed by IRI.
func (s *Store) ConceptsByIRIs(ctx context.Context, iris []string) (map[string]*Concept, error) {
	out := make(map[string]*Concept, len(iris))
	if len(iris) == 0 {
		return out, nil
	}
	var concepts []Concept
	err := s.db.NewSelect().
		Model(&concepts).
		Where("iri IN (?)", bun.In(iris)).
		Scan(ctx)
	if err != nil {
		s.log.Error("failed to load concepts", logger.Error(err), slog.Int("count", len(iris)))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	for i := range concepts {
		out[concepts[i].IRI] = &concepts[i]
	}
	return out, nil
}

// ConceptsForScheme returns the concepts in scheme ordered by IRI. With topOnly, only
// concepts that are also top concepts of the scheme are returned.
func (s *Store) ConceptsForScheme(ctx context.Context, scheme string, topOnly bool) ([]Concept, error) {
	q := s.db.NewSelect().Model((*Concept)(nil)).Order("iri ASC")
	if s.db.Dialect().Name() == dialect.PG {
		member, err := json.Marshal([]Node{{ID: scheme}})
		if err != nil {
			return nil, err
		}
		q = q.Where("schemes @> ?::jsonb", string(member))
		if topOnly {
			q = q.Where("top_concept_of @> ?::jsonb", string(member))
		}
	}
	var concepts []Concept
	if err := q.Scan(ctx, &concepts); err != nil {
		s.log.Error("failed to list concepts for scheme", logger.Error(err), slog.String("scheme", scheme))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	out := make([]Concept, 0, len(concepts))
	for _, c := range concepts {
		if !containsNode(c.Schemes, scheme) {
			continue
		}
		if topOnly && !containsNode(c.TopConceptOf, scheme) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ConceptSchemeGet returns the concept scheme with the given IRI.
func (s *Store) ConceptSchemeGet(ctx context.Context, iri string) (*ConceptScheme, error) {
	return getRecord[ConceptScheme](ctx, s, conceptSchemeRecord, iri)
}

func (s *Store) ConceptSchemeCreate(ctx context.Context, cs *ConceptScheme) (*ConceptScheme, error) {
	cs.normalize()
	if err := createRecord(ctx, s, conceptSchemeRecord, cs.IRI, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Store) ConceptSchemeUpdate(ctx context.Context, cs *ConceptScheme) (*ConceptScheme, error) {
	cs.normalize()
	if err := updateRecord(ctx, s, conceptSchemeRecord, cs.IRI, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Store) ConceptSchemeDelete(ctx context.Context, iri string) (int, error) {
	return deleteRecord[ConceptScheme](ctx, s, conceptSchemeRecord, iri)
}

func (s *Store) ConceptSchemeList(ctx context.Context) ([]ConceptScheme, error) {
	return listRecords[ConceptScheme](ctx, s, conceptSchemeRecord)
}

// ConceptSchemeIRIs enumerates every concept scheme IRI.
func (s *Store) ConceptSchemeIRIs(ctx context.Context) (map[string]struct{}, error) {
	var iris []string
	err := s.db.NewSelect().
		Model((*ConceptScheme)(nil)).
		Column("iri").
		Scan(ctx, &iris)
	if err != nil {
		s.log.Error("failed to list concept scheme IRIs", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	out := make(map[string]struct{}, len(iris))
	for _, iri := range iris {
		out[iri] = struct{}{}
	}
	return out, nil
}

func (s *Store) CorrespondenceGet(ctx context.Context, iri string) (*Correspondence, error) {
	return getRecord[Correspondence](ctx, s, correspondenceRecord, iri)
}

func (s *Store) CorrespondenceCreate(ctx context.Context, c *Correspondence) (*Correspondence, error) {
	c.normalize()
	if err := createRecord(ctx, s, correspondenceRecord, c.IRI, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CorrespondenceUpdate replaces every field except made_ofs and returns the stored row.
func (s *Store) CorrespondenceUpdate(ctx context.Context, c *Correspondence) (*Correspondence, error) {
	c.normalize()
	if err := updateRecord(ctx, s, correspondenceRecord, c.IRI, c, "made_ofs"); err != nil {
		return nil, err
	}
	return s.CorrespondenceGet(ctx, c.IRI)
}

func (s *Store) CorrespondenceDelete(ctx context.Context, iri string) (int, error) {
	return deleteRecord[Correspondence](ctx, s, correspondenceRecord, iri)
}

func (s *Store) CorrespondenceList(ctx context.Context) ([]Correspondence, error) {
	return listRecords[Correspondence](ctx, s, correspondenceRecord)
}

func (s *Store) AssociationGet(ctx context.Context, iri string) (*Association, error) {
	return getRecord[Association](ctx, s, associationRecord, iri)
}

func (s *Store) AssociationCreate(ctx context.Context, a *Association) (*Association, error) {
	a.normalize()
	if err := createRecord(ctx, s, associationRecord, a.IRI, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) AssociationUpdate(ctx context.Context, a *Association) (*Association, error) {
	a.normalize()
	if err := updateRecord(ctx, s, associationRecord, a.IRI, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) AssociationDelete(ctx context.Context, iri string) (int, error) {
	return deleteRecord[Association](ctx, s, associationRecord, iri)
}

func (s *Store) AssociationList(ctx context.Context) ([]Association, error) {
	return listRecords[Association](ctx, s, associationRecord)
}

// AssociationFilter narrows AssociationFind. Empty fields do not filter.
type AssociationFilter struct {
	Correspondence string
	SourceConcept  string
	TargetConcept  string
	Kind           AssociationKind
}

// AssociationFind returns associations listed in the correspondence's made_ofs and/or
// referencing the given concepts, ordered by IRI.
func (s *Store) AssociationFind(ctx context.Context, f AssociationFilter) ([]Association, error) {
	var members map[string]struct{}
	if f.Correspondence != "" {
		corr, err := s.CorrespondenceGet(ctx, f.Correspondence)
		if err != nil {
			return nil, err
		}
		members = make(map[string]struct{}, len(corr.MadeOfs))
		for _, n := range corr.MadeOfs {
			members[n.ID] = struct{}{}
		}
	}

	q := s.db.NewSelect().Model((*Association)(nil)).Order("iri ASC")
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}
	var all []Association
	if err := q.Scan(ctx, &all); err != nil {
		s.log.Error("failed to find associations", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	out := make([]Association, 0, len(all))
	for _, a := range all {
		if members != nil {
			if _, ok := members[a.IRI]; !ok {
				continue
			}
		}
		if f.SourceConcept != "" && !containsNode(a.SourceConcepts, f.SourceConcept) {
			continue
		}
		if f.TargetConcept != "" && !containsNode(a.TargetConcepts, f.TargetConcept) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// ObjectType checks the entity tables in priority order and returns the first kind holding iri.
func (s *Store) ObjectType(ctx context.Context, iri string) (Kind, error) {
	kinds := []struct {
		kind   Kind
		exists func(context.Context, *Store, string) (bool, error)
	}{
		{KindConcept, recordExists[Concept]},
		{KindConceptScheme, recordExists[ConceptScheme]},
		{KindCorrespondence, recordExists[Correspondence]},
		{KindAssociation, recordExists[Association]},
	}
	for _, p := range kinds {
		ok, err := p.exists(ctx, s, iri)
		if err != nil {
			return "", err
		}
		if ok {
			return p.kind, nil
		}
	}
	return "", apperror.ErrObjectNotFound.WithMessagef("Object with IRI `%s` not found", iri)
}

// MadeOfAdd unions associations into the correspondence's made_ofs.
func (s *Store) MadeOfAdd(ctx context.Context, m MadeOf) (*Correspondence, error) {
	return s.updateMadeOf(ctx, m.Correspondence, func(set map[string]struct{}) {
		for _, n := range m.Associations {
			set[n.ID] = struct{}{}
		}
	})
}

// MadeOfRemove removes associations from the correspondence's made_ofs.
func (s *Store) MadeOfRemove(ctx context.Context, m MadeOf) (*Correspondence, error) {
	return s.updateMadeOf(ctx, m.Correspondence, func(set map[string]struct{}) {
		for _, n := range m.Associations {
			delete(set, n.ID)
		}
	})
}

// updateMadeOf is a read-modify-write of made_ofs in one transaction. On Postgres the row is
// locked, so concurrent add/remove calls apply in turn rather than overwriting each other.
func (s *Store) updateMadeOf(ctx context.Context, iri string, apply func(map[string]struct{})) (*Correspondence, error) {
	corr := new(Correspondence)
	err := database.InTx(ctx, s.db, func(tx bun.IDB) error {
		q := tx.NewSelect().Model(corr).Where("iri = ?", iri).Limit(1)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return correspondenceRecord.missing(iri)
			}
			return apperror.ErrDatabase.WithInternal(err)
		}

		set := make(map[string]struct{}, len(corr.MadeOfs))
		for _, n := range corr.MadeOfs {
			set[n.ID] = struct{}{}
		}
		apply(set)
		corr.MadeOfs = nodesFromSet(set)

		if _, err := tx.NewUpdate().Model(corr).Column("made_ofs").WherePK().Exec(ctx); err != nil {
			return apperror.ErrDatabase.WithInternal(err)
		}
		return nil
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrDatabase) {
			s.log.Error("failed to update made_ofs", logger.Error(err), slog.String("iri", iri))
		}
		return nil, err
	}
	return corr, nil
}

func containsNode(nodes []Node, iri string) bool {
	for _, n := range nodes {
		if n.ID == iri {
			return true
		}
	}
	return false
}
