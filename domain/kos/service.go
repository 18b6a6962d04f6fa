package kos

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/emergent-company/emergent.kos/internal/database"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
	"github.com/emergent-company/emergent.kos/pkg/logger"
)

// ConceptIndexer receives concept changes after they are stored.
type ConceptIndexer interface {
	CreateConcept(ctx context.Context, c *Concept) error
	UpdateConcept(ctx context.Context, c *Concept) error
	DeleteConcept(ctx context.Context, iri string) error
}

// Service composes the record store and the relationship engine into the graph operations
// exposed by the API.
type Service struct {
	db     bun.IDB
	store  *Store
	rels   *Relationships
	index  ConceptIndexer
	tracer trace.Tracer
	log    *slog.Logger
}

// NewService creates the graph consistency service. index may be nil.
func NewService(db bun.IDB, store *Store, rels *Relationships, index ConceptIndexer, log *slog.Logger) *Service {
	return &Service{
		db:     db,
		store:  store,
		rels:   rels,
		index:  index,
		tracer: otel.Tracer("github.com/emergent-company/emergent.kos/domain/kos"),
		log:    log.With(logger.Scope("kos.service")),
	}
}

// Store exposes the record store for read-only collaborators such as the reindexer.
func (s *Service) Store() *Store {
	return s.store
}

func observe[T any](ctx context.Context, s *Service, op string, iri string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "kos."+op, trace.WithAttributes(attribute.String("kos.iri", iri)))
	defer span.End()

	start := time.Now()
	out, err := fn(ctx)
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if appErr, ok := apperror.As(err); ok {
			outcome = appErr.Code
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	OperationsTotal.WithLabelValues(op, outcome).Inc()
	return out, err
}

func (s *Service) syncSearch(ctx context.Context, op, iri string, fn func(ConceptIndexer) error) {
	if s.index == nil {
		return
	}
	err := fn(s.index)
	if err == nil || errors.Is(err, apperror.ErrSearchNotConfigured) {
		return
	}
	SearchSyncFailures.WithLabelValues(op).Inc()
	s.log.Warn("search index update failed", slog.String("operation", op), slog.String("iri", iri), logger.Error(err))
}

// validateSchemes requires at least one of the concept's schemes to be stored.
func (s *Service) validateSchemes(ctx context.Context, store *Store, c *Concept) error {
	known, err := store.ConceptSchemeIRIs(ctx)
	if err != nil {
		return err
	}
	for _, iri := range c.SchemeIRIs() {
		if _, ok := known[iri]; ok {
			return nil
		}
	}
	return apperror.ErrConceptSchemesNotInDatabase.WithMessagef(
		"None of the given concept schemes (%s) are in the database", strings.Join(c.SchemeIRIs(), ", "))
}

func (s *Service) ConceptGet(ctx context.Context, iri string) (*Concept, error) {
	return s.store.ConceptGet(ctx, iri)
}

func (s *Service) ConceptList(ctx context.Context) ([]Concept, error) {
	return s.store.ConceptList(ctx)
}

// ConceptCreate stores a concept and its inline relationships, deleting the concept again
// when the relationships are rejected.
func (s *Service) ConceptCreate(ctx context.Context, c *Concept, rels []Relationship) (*Concept, error) {
	return observe(ctx, s, "concept_create", c.IRI, func(ctx context.Context) (*Concept, error) {
		if err := s.validateSchemes(ctx, s.store, c); err != nil {
			return nil, err
		}
		saga := ConceptCreation{
			Concepts:      s.store,
			Relationships: s.rels,
			OnCompensate: func(outcome string) {
				CompensationsTotal.WithLabelValues(outcome).Inc()
				s.log.Warn("concept creation compensated", slog.String("iri", c.IRI), slog.String("outcome", outcome))
			},
		}
		created, err := saga.Run(ctx, c, rels)
		if err != nil {
			return nil, err
		}
		s.syncSearch(ctx, "create", created.IRI, func(ix ConceptIndexer) error { return ix.CreateConcept(ctx, created) })
		return created, nil
	})
}

// ConceptUpdate replaces a concept. Dropping a scheme that hierarchical neighbours still
// belong to is refused; nothing is written in that case.
func (s *Service) ConceptUpdate(ctx context.Context, c *Concept) (*Concept, error) {
	return observe(ctx, s, "concept_update", c.IRI, func(ctx context.Context) (*Concept, error) {
		if HasInlineRelationships(c) {
			return nil, apperror.ErrValidation.WithMessage(
				"Concept updates can't change `broader` or `narrower` relationships; use the relationships API")
		}
		var updated *Concept
		err := database.InTx(ctx, s.db, func(tx bun.IDB) error {
			store := s.store.WithDB(tx)
			if err := s.validateSchemes(ctx, store, c); err != nil {
				return err
			}
			current, err := store.ConceptGet(ctx, c.IRI)
			if err != nil {
				return err
			}
			removed := removedSchemes(current, c)
			if len(removed) > 0 {
				known, err := s.rels.WithDB(tx).KnownConceptSchemesForHierarchicalRelationships(ctx, c.IRI)
				if err != nil {
					return err
				}
				for _, iri := range known {
					if _, ok := removed[iri]; ok {
						return apperror.ErrRelationshipsInCurrentScheme.WithMessagef(
							"Update asked to remove concept scheme `%s`, but hierarchical relationships of this concept depend on it", iri)
					}
				}
			}
			updated, err = store.ConceptUpdate(ctx, c)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.syncSearch(ctx, "update", updated.IRI, func(ix ConceptIndexer) error { return ix.UpdateConcept(ctx, updated) })
		return updated, nil
	})
}

func removedSchemes(current, next *Concept) map[string]struct{} {
	removed := make(map[string]struct{})
	for _, n := range current.Schemes {
		if !containsNode(next.Schemes, n.ID) {
			removed[n.ID] = struct{}{}
		}
	}
	return removed
}

// ConceptDelete deletes a concept; ErrConceptNotFound when nothing was removed.
func (s *Service) ConceptDelete(ctx context.Context, iri string) error {
	_, err := observe(ctx, s, "concept_delete", iri, func(ctx context.Context) (struct{}, error) {
		n, err := s.store.ConceptDelete(ctx, iri)
		if err != nil {
			return struct{}{}, err
		}
		if n == 0 {
			return struct{}{}, conceptRecord.missing(iri)
		}
		s.syncSearch(ctx, "delete", iri, func(ix ConceptIndexer) error { return ix.DeleteConcept(ctx, iri) })
		return struct{}{}, nil
	})
	return err
}

// ConceptBroader returns the broader concepts of iri within scheme, nearest first.
func (s *Service) ConceptBroader(ctx context.Context, iri, scheme string) ([]Concept, error) {
	return s.rels.BroaderInAscendingOrder(ctx, iri, scheme)
}

func (s *Service) ConceptsForScheme(ctx context.Context, scheme string, topOnly bool) ([]Concept, error) {
	if _, err := s.store.ConceptSchemeGet(ctx, scheme); err != nil {
		return nil, err
	}
	return s.store.ConceptsForScheme(ctx, scheme, topOnly)
}

func (s *Service) ConceptSchemeGet(ctx context.Context, iri string) (*ConceptScheme, error) {
	return s.store.ConceptSchemeGet(ctx, iri)
}

func (s *Service) ConceptSchemeList(ctx context.Context) ([]ConceptScheme, error) {
	return s.store.ConceptSchemeList(ctx)
}

func (s *Service) ConceptSchemeCreate(ctx context.Context, cs *ConceptScheme) (*ConceptScheme, error) {
	return observe(ctx, s, "concept_scheme_create", cs.IRI, func(ctx context.Context) (*ConceptScheme, error) {
		return s.store.ConceptSchemeCreate(ctx, cs)
	})
}

func (s *Service) ConceptSchemeUpdate(ctx context.Context, cs *ConceptScheme) (*ConceptScheme, error) {
	return observe(ctx, s, "concept_scheme_update", cs.IRI, func(ctx context.Context) (*ConceptScheme, error) {
		return s.store.ConceptSchemeUpdate(ctx, cs)
	})
}

func (s *Service) ConceptSchemeDelete(ctx context.Context, iri string) error {
	_, err := observe(ctx, s, "concept_scheme_delete", iri, func(ctx context.Context) (struct{}, error) {
		n, err := s.store.ConceptSchemeDelete(ctx, iri)
		if err == nil && n == 0 {
			err = conceptSchemeRecord.missing(iri)
		}
		return struct{}{}, err
	})
	return err
}

func (s *Service) RelationshipsGet(ctx context.Context, iri string, source, target bool) ([]Relationship, error) {
	return s.rels.Get(ctx, iri, source, target)
}

func (s *Service) RelationshipsList(ctx context.Context) ([]Relationship, error) {
	return s.rels.List(ctx)
}

func (s *Service) RelationshipsCreate(ctx context.Context, rels []Relationship) ([]Relationship, error) {
	return observe(ctx, s, "relationships_create", "", func(ctx context.Context) ([]Relationship, error) {
		return s.rels.Create(ctx, rels)
	})
}

func (s *Service) RelationshipsUpdate(ctx context.Context, rels []Relationship) ([]Relationship, error) {
	return observe(ctx, s, "relationships_update", "", func(ctx context.Context) ([]Relationship, error) {
		return s.rels.Update(ctx, rels)
	})
}

func (s *Service) RelationshipsDelete(ctx context.Context, rels []Relationship) (int, error) {
	return observe(ctx, s, "relationships_delete", "", func(ctx context.Context) (int, error) {
		return s.rels.Delete(ctx, rels)
	})
}

func (s *Service) CorrespondenceGet(ctx context.Context, iri string) (*Correspondence, error) {
	return s.store.CorrespondenceGet(ctx, iri)
}

func (s *Service) CorrespondenceList(ctx context.Context) ([]Correspondence, error) {
	return s.store.CorrespondenceList(ctx)
}

// CorrespondenceCreate stores a correspondence with an empty made_ofs list.
func (s *Service) CorrespondenceCreate(ctx context.Context, c *Correspondence) (*Correspondence, error) {
	return observe(ctx, s, "correspondence_create", c.IRI, func(ctx context.Context) (*Correspondence, error) {
		c.MadeOfs = nil
		return s.store.CorrespondenceCreate(ctx, c)
	})
}

// CorrespondenceUpdate replaces a correspondence but leaves made_ofs as stored.
func (s *Service) CorrespondenceUpdate(ctx context.Context, c *Correspondence) (*Correspondence, error) {
	return observe(ctx, s, "correspondence_update", c.IRI, func(ctx context.Context) (*Correspondence, error) {
		c.MadeOfs = nil
		return s.store.CorrespondenceUpdate(ctx, c)
	})
}

func (s *Service) CorrespondenceDelete(ctx context.Context, iri string) error {
	_, err := observe(ctx, s, "correspondence_delete", iri, func(ctx context.Context) (struct{}, error) {
		n, err := s.store.CorrespondenceDelete(ctx, iri)
		if err == nil && n == 0 {
			err = correspondenceRecord.missing(iri)
		}
		return struct{}{}, err
	})
	return err
}

func (s *Service) MadeOfAdd(ctx context.Context, m MadeOf) (*Correspondence, error) {
	return observe(ctx, s, "made_of_add", m.Correspondence, func(ctx context.Context) (*Correspondence, error) {
		return s.store.MadeOfAdd(ctx, m)
	})
}

func (s *Service) MadeOfRemove(ctx context.Context, m MadeOf) (*Correspondence, error) {
	return observe(ctx, s, "made_of_remove", m.Correspondence, func(ctx context.Context) (*Correspondence, error) {
		return s.store.MadeOfRemove(ctx, m)
	})
}

func (s *Service) AssociationGet(ctx context.Context, iri string) (*Association, error) {
	return s.store.AssociationGet(ctx, iri)
}

func (s *Service) AssociationList(ctx context.Context) ([]Association, error) {
	return s.store.AssociationList(ctx)
}

func (s *Service) AssociationFind(ctx context.Context, f AssociationFilter) ([]Association, error) {
	return s.store.AssociationFind(ctx, f)
}

func (s *Service) AssociationCreate(ctx context.Context, a *Association) (*Association, error) {
	return observe(ctx, s, "association_create", a.IRI, func(ctx context.Context) (*Association, error) {
		return s.store.AssociationCreate(ctx, a)
	})
}

func (s *Service) AssociationUpdate(ctx context.Context, a *Association) (*Association, error) {
	return observe(ctx, s, "association_update", a.IRI, func(ctx context.Context) (*Association, error) {
		return s.store.AssociationUpdate(ctx, a)
	})
}

func (s *Service) AssociationDelete(ctx context.Context, iri string) error {
	_, err := observe(ctx, s, "association_delete", iri, func(ctx context.Context) (struct{}, error) {
		n, err := s.store.AssociationDelete(ctx, iri)
		if err == nil && n == 0 {
			err = associationRecord.missing(iri)
		}
		return struct{}{}, err
	})
	return err
}

// ObjectType reports which kind of object iri names.
func (s *Service) ObjectType(ctx context.Context, iri string) (Kind, error) {
	return s.store.ObjectType(ctx, iri)
}
