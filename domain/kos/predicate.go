package kos

import (
	"fmt"
	"strings"
)

// JSON-LD vocabularies.
const (
	SKOS    = "http://www.w3.org/2004/02/skos/core#"
	XKOS    = "http://rdf-vocabulary.ddialliance.org/xkos#"
	DCTerms = "http://purl.org/dc/terms/"
	OWL     = "http://www.w3.org/2002/07/owl#"
	ADMS    = "http://www.w3.org/ns/adms#"
	XSD     = "http://www.w3.org/2001/XMLSchema#"
)

// Predicate is a relationship verb. Values are the SKOS local names.
type Predicate string

const (
	Broader            Predicate = "broader"
	Narrower           Predicate = "narrower"
	BroaderTransitive  Predicate = "broaderTransitive"
	NarrowerTransitive Predicate = "narrowerTransitive"
	TopConceptOf       Predicate = "topConceptOf"
	HasTopConcept      Predicate = "hasTopConcept"

	BroadMatch   Predicate = "broadMatch"
	CloseMatch   Predicate = "closeMatch"
	ExactMatch   Predicate = "exactMatch"
	NarrowMatch  Predicate = "narrowMatch"
	RelatedMatch Predicate = "relatedMatch"
)

// PredicateCategory separates hierarchical verbs from associative (mapping) verbs.
type PredicateCategory int

const (
	Hierarchical PredicateCategory = iota + 1
	Associative
)

var predicateCategories = map[Predicate]PredicateCategory{
	Broader:            Hierarchical,
	Narrower:           Hierarchical,
	BroaderTransitive:  Hierarchical,
	NarrowerTransitive: Hierarchical,
	TopConceptOf:       Hierarchical,
	HasTopConcept:      Hierarchical,
	BroadMatch:         Associative,
	CloseMatch:         Associative,
	ExactMatch:         Associative,
	NarrowMatch:        Associative,
	RelatedMatch:       Associative,
}

// Predicates lists every known verb in declaration order.
var Predicates = []Predicate{
	Broader, Narrower, BroaderTransitive, NarrowerTransitive, TopConceptOf, HasTopConcept,
	BroadMatch, CloseMatch, ExactMatch, NarrowMatch, RelatedMatch,
}

// Valid reports whether p is a known verb.
func (p Predicate) Valid() bool {
	_, ok := predicateCategories[p]
	return ok
}

// Category returns the verb's category, or 0 for unknown verbs.
func (p Predicate) Category() PredicateCategory {
	return predicateCategories[p]
}

// IsHierarchical reports whether the verb belongs to the hierarchy.
func (p Predicate) IsHierarchical() bool {
	return p.Category() == Hierarchical
}

// IRI returns the full SKOS IRI of the verb.
func (p Predicate) IRI() string {
	return SKOS + string(p)
}

// HierarchicalPredicates returns the hierarchical verbs.
func HierarchicalPredicates() []Predicate {
	var out []Predicate
	for _, p := range Predicates {
		if p.IsHierarchical() {
			out = append(out, p)
		}
	}
	return out
}

// ParsePredicate accepts a full SKOS IRI or a local name.
func ParsePredicate(s string) (Predicate, error) {
	p := Predicate(strings.TrimPrefix(s, SKOS))
	if !p.Valid() {
		return "", fmt.Errorf("unknown relationship predicate %q", s)
	}
	return p, nil
}
