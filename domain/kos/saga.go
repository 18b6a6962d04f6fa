package kos

import (
	"context"
	"errors"

	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

type conceptWriter interface {
	ConceptCreate(ctx context.Context, c *Concept) (*Concept, error)
	ConceptDelete(ctx context.Context, iri string) (int, error)
}

type relationshipCreator interface {
	Create(ctx context.Context, rels []Relationship) ([]Relationship, error)
}

// ConceptCreation creates a concept together with its inline relationships. The two writes
// are separate; when the relationships fail the concept is deleted again and the
// relationship error is returned. If that delete fails too, ErrCompensationFailed carries
// both errors and the concept is left behind for an operator.
type ConceptCreation struct {
	Concepts      conceptWriter
	Relationships relationshipCreator

	// OnCompensate observes compensation outcomes ("ok" or "failed").
	OnCompensate func(outcome string)
}

// Run executes both phases.
func (cc ConceptCreation) Run(ctx context.Context, c *Concept, rels []Relationship) (*Concept, error) {
	created, err := cc.Concepts.ConceptCreate(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return created, nil
	}
	if _, err := cc.Relationships.Create(ctx, rels); err != nil {
		return nil, cc.compensate(ctx, created.IRI, err)
	}
	return created, nil
}

func (cc ConceptCreation) compensate(ctx context.Context, iri string, cause error) error {
	// The caller giving up must not stop the undo.
	if _, err := cc.Concepts.ConceptDelete(context.WithoutCancel(ctx), iri); err != nil {
		cc.report("failed")
		return apperror.ErrCompensationFailed.
			WithMessagef("Concept `%s` was created, its relationships failed and deleting it again failed", iri).
			WithInternal(errors.Join(cause, err))
	}
	cc.report("ok")
	return cause
}

func (cc ConceptCreation) report(outcome string) {
	if cc.OnCompensate != nil {
		cc.OnCompensate(outcome)
	}
}
