// Package kos implements the knowledge organization system graph: concepts, concept schemes,
// correspondences, associations and the relationship edges between concepts.
package kos

import (
	"sort"

	"github.com/uptrace/bun"
)

// Literal is a JSON-LD value object.
type Literal struct {
	Value    string `json:"@value" validate:"required"`
	Language string `json:"@language,omitempty"`
	Type     string `json:"@type,omitempty"`
}

// Node is a JSON-LD node reference.
type Node struct {
	ID string `json:"@id" validate:"required,iri"`
}

// Notes holds the SKOS documentation notes.
type Notes struct {
	Change    []Literal `json:"change,omitempty"`
	Editorial []Literal `json:"editorial,omitempty"`
	History   []Literal `json:"history,omitempty"`
	Note      []Literal `json:"note,omitempty"`
	Scope     []Literal `json:"scope,omitempty"`
	Example   []Literal `json:"example,omitempty"`
}

// Descriptive holds the labelling and documentation properties shared by concepts,
// concept schemes and correspondences.
type Descriptive struct {
	PrefLabels   []Literal `bun:"pref_labels,type:jsonb"`
	AltLabels    []Literal `bun:"alt_labels,type:jsonb"`
	HiddenLabels []Literal `bun:"hidden_labels,type:jsonb"`
	Definitions  []Literal `bun:"definitions,type:jsonb"`
	Notations    []Literal `bun:"notations,type:jsonb"`
	Notes        Notes     `bun:"notes,type:jsonb"`
	Status       []Node    `bun:"status,type:jsonb"`
}

func (d *Descriptive) normalize() {
	d.PrefLabels = nonNil(d.PrefLabels)
	d.AltLabels = nonNil(d.AltLabels)
	d.HiddenLabels = nonNil(d.HiddenLabels)
	d.Definitions = nonNil(d.Definitions)
	d.Notations = nonNil(d.Notations)
	d.Status = nonNil(d.Status)
}

// PrefLabel returns the preferred label for lang, or "" when absent.
func (d *Descriptive) PrefLabel(lang string) string {
	for _, l := range d.PrefLabels {
		if l.Language == lang {
			return l.Value
		}
	}
	return ""
}

// Concept is a skos:Concept.
type Concept struct {
	bun.BaseModel `bun:"table:concept"`

	IRI   string   `bun:"iri,pk"`
	Types []string `bun:"types,type:jsonb"`
	Descriptive
	Schemes      []Node         `bun:"schemes,type:jsonb"`
	TopConceptOf []Node         `bun:"top_concept_of,type:jsonb"`
	Extra        map[string]any `bun:"extra,type:jsonb"`
}

// SchemeIRIs returns the IRIs of the concept schemes the concept is in.
func (c *Concept) SchemeIRIs() []string {
	return nodeIRIs(c.Schemes)
}

func (c *Concept) normalize() {
	c.Types = nonNil(c.Types)
	c.Descriptive.normalize()
	c.Schemes = nonNil(c.Schemes)
	c.TopConceptOf = nonNil(c.TopConceptOf)
	if c.Extra == nil {
		c.Extra = map[string]any{}
	}
}

// ConceptScheme is a skos:ConceptScheme.
type ConceptScheme struct {
	bun.BaseModel `bun:"table:concept_scheme"`

	IRI   string   `bun:"iri,pk"`
	Types []string `bun:"types,type:jsonb"`
	Descriptive
	Created  []Literal      `bun:"created,type:jsonb"`
	Creators []Node         `bun:"creators,type:jsonb"`
	Version  []Literal      `bun:"version,type:jsonb"`
	Extra    map[string]any `bun:"extra,type:jsonb"`
}

func (s *ConceptScheme) normalize() {
	s.Types = nonNil(s.Types)
	s.Descriptive.normalize()
	s.Created = nonNil(s.Created)
	s.Creators = nonNil(s.Creators)
	s.Version = nonNil(s.Version)
	if s.Extra == nil {
		s.Extra = map[string]any{}
	}
}

// Correspondence is an xkos:Correspondence between concept schemes. MadeOfs lists the
// associations it is made of and only changes through MadeOfAdd and MadeOfRemove.
type Correspondence struct {
	bun.BaseModel `bun:"table:correspondence"`

	IRI   string   `bun:"iri,pk"`
	Types []string `bun:"types,type:jsonb"`
	Descriptive
	Created  []Literal      `bun:"created,type:jsonb"`
	Creators []Node         `bun:"creators,type:jsonb"`
	Version  []Literal      `bun:"version,type:jsonb"`
	Compares []Node         `bun:"compares,type:jsonb"`
	MadeOfs  []Node         `bun:"made_ofs,type:jsonb"`
	Extra    map[string]any `bun:"extra,type:jsonb"`
}

func (c *Correspondence) normalize() {
	c.Types = nonNil(c.Types)
	c.Descriptive.normalize()
	c.Created = nonNil(c.Created)
	c.Creators = nonNil(c.Creators)
	c.Version = nonNil(c.Version)
	c.Compares = nonNil(c.Compares)
	c.MadeOfs = nonNil(c.MadeOfs)
	if c.Extra == nil {
		c.Extra = map[string]any{}
	}
}

// AssociationKind classifies associations by their number of source concepts.
type AssociationKind string

const (
	AssociationSimple      AssociationKind = "simple"
	AssociationConditional AssociationKind = "conditional"
)

// Association is an xkos:ConceptAssociation.
type Association struct {
	bun.BaseModel `bun:"table:association"`

	IRI            string          `bun:"iri,pk"`
	Types          []string        `bun:"types,type:jsonb"`
	SourceConcepts []Node          `bun:"source_concepts,type:jsonb"`
	TargetConcepts []Node          `bun:"target_concepts,type:jsonb"`
	Kind           AssociationKind `bun:"kind"`
	Extra          map[string]any  `bun:"extra,type:jsonb"`
}

// DeriveKind returns conditional when more than one source concept is given.
func (a *Association) DeriveKind() AssociationKind {
	if len(a.SourceConcepts) > 1 {
		return AssociationConditional
	}
	return AssociationSimple
}

func (a *Association) normalize() {
	a.Types = nonNil(a.Types)
	a.SourceConcepts = nonNil(a.SourceConcepts)
	a.TargetConcepts = nonNil(a.TargetConcepts)
	a.Kind = a.DeriveKind()
	if a.Extra == nil {
		a.Extra = map[string]any{}
	}
}

// Relationship is a directed edge between two IRIs.
type Relationship struct {
	bun.BaseModel `bun:"table:relationship"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Source    string    `bun:"source,notnull,unique:relationship_source_target_uniqueness"`
	Target    string    `bun:"target,notnull,unique:relationship_source_target_uniqueness"`
	Predicate Predicate `bun:"predicate,notnull"`
}

// Pair returns the (source, target) key the uniqueness constraint is defined on.
func (r Relationship) Pair() [2]string {
	return [2]string{r.Source, r.Target}
}

// Normalized rewrites narrower edges to their inverse broader edge.
func (r Relationship) Normalized() Relationship {
	if r.Predicate == Narrower {
		return Relationship{Source: r.Target, Target: r.Source, Predicate: Broader}
	}
	return Relationship{Source: r.Source, Target: r.Target, Predicate: r.Predicate}
}

// Kind identifies a stored object type.
type Kind string

const (
	KindConcept        Kind = "Concept"
	KindConceptScheme  Kind = "ConceptScheme"
	KindCorrespondence Kind = "Correspondence"
	KindAssociation    Kind = "Association"
)

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nodeIRIs(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func nodesFromSet(set map[string]struct{}) []Node {
	out := make([]Node, 0, len(set))
	for iri := range set {
		out = append(out, Node{ID: iri})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
