package kos

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// JSON-LD keys of the expanded documents accepted and produced by the API.
const (
	KeyID   = "@id"
	KeyType = "@type"

	KeyPrefLabel     = SKOS + "prefLabel"
	KeyAltLabel      = SKOS + "altLabel"
	KeyHiddenLabel   = SKOS + "hiddenLabel"
	KeyDefinition    = SKOS + "definition"
	KeyNotation      = SKOS + "notation"
	KeyChangeNote    = SKOS + "changeNote"
	KeyEditorialNote = SKOS + "editorialNote"
	KeyHistoryNote   = SKOS + "historyNote"
	KeyNote          = SKOS + "note"
	KeyScopeNote     = SKOS + "scopeNote"
	KeyExample       = SKOS + "example"
	KeyInScheme      = SKOS + "inScheme"
	KeyTopConceptOf  = SKOS + "topConceptOf"
	KeyBroader       = SKOS + "broader"
	KeyNarrower      = SKOS + "narrower"

	KeyCreated     = DCTerms + "created"
	KeyCreator     = DCTerms + "creator"
	KeyVersionInfo = OWL + "versionInfo"
	KeyStatus      = ADMS + "status"

	KeyCompares      = XKOS + "compares"
	KeyMadeOf        = XKOS + "madeOf"
	KeySourceConcept = XKOS + "sourceConcept"
	KeyTargetConcept = XKOS + "targetConcept"

	TypeConcept        = SKOS + "Concept"
	TypeConceptScheme  = SKOS + "ConceptScheme"
	TypeCorrespondence = XKOS + "Correspondence"
	TypeAssociation    = XKOS + "ConceptAssociation"
	TypeDateTime       = XSD + "dateTime"
)

type ldField struct {
	key string
	ptr any
}

func descriptiveFields(d *Descriptive) []ldField {
	return []ldField{
		{KeyPrefLabel, &d.PrefLabels},
		{KeyAltLabel, &d.AltLabels},
		{KeyHiddenLabel, &d.HiddenLabels},
		{KeyDefinition, &d.Definitions},
		{KeyNotation, &d.Notations},
		{KeyChangeNote, &d.Notes.Change},
		{KeyEditorialNote, &d.Notes.Editorial},
		{KeyHistoryNote, &d.Notes.History},
		{KeyNote, &d.Notes.Note},
		{KeyScopeNote, &d.Notes.Scope},
		{KeyExample, &d.Notes.Example},
		{KeyStatus, &d.Status},
	}
}

func encodeDocument(iri string, types []string, fields []ldField, extra map[string]any) ([]byte, error) {
	doc := make(map[string]any, len(extra)+len(fields)+2)
	for k, v := range extra {
		doc[k] = v
	}
	doc[KeyID] = iri
	if len(types) > 0 {
		doc[KeyType] = types
	}
	for _, f := range fields {
		if reflect.ValueOf(f.ptr).Elem().Len() > 0 {
			doc[f.key] = f.ptr
		}
	}
	return json.Marshal(doc)
}

func decodeDocument(data []byte, iri *string, types *[]string, fields []ldField, extra *map[string]any) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw[KeyID]; ok {
		if err := json.Unmarshal(v, iri); err != nil {
			return fmt.Errorf("%s: %w", KeyID, err)
		}
		delete(raw, KeyID)
	}
	if v, ok := raw[KeyType]; ok {
		t, err := decodeTypes(v)
		if err != nil {
			return err
		}
		*types = t
		delete(raw, KeyType)
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.ptr); err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		delete(raw, f.key)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		out[k] = value
	}
	*extra = out
	return nil
}

// decodeTypes accepts "@type" as a single IRI or a list of IRIs.
func decodeTypes(raw json.RawMessage) ([]string, error) {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("%s must be a string or a list of strings", KeyType)
	}
	return []string{one}, nil
}

func (c *Concept) fields() []ldField {
	return append(descriptiveFields(&c.Descriptive),
		ldField{KeyInScheme, &c.Schemes},
		ldField{KeyTopConceptOf, &c.TopConceptOf},
	)
}

// MarshalJSON encodes the concept as an expanded JSON-LD document.
func (c Concept) MarshalJSON() ([]byte, error) {
	return encodeDocument(c.IRI, c.Types, c.fields(), c.Extra)
}

// UnmarshalJSON decodes an expanded JSON-LD document, keeping unknown keys in Extra.
func (c *Concept) UnmarshalJSON(data []byte) error {
	return decodeDocument(data, &c.IRI, &c.Types, c.fields(), &c.Extra)
}

func (s *ConceptScheme) fields() []ldField {
	return append(descriptiveFields(&s.Descriptive),
		ldField{KeyCreated, &s.Created},
		ldField{KeyCreator, &s.Creators},
		ldField{KeyVersionInfo, &s.Version},
	)
}

func (s ConceptScheme) MarshalJSON() ([]byte, error) {
	return encodeDocument(s.IRI, s.Types, s.fields(), s.Extra)
}

func (s *ConceptScheme) UnmarshalJSON(data []byte) error {
	return decodeDocument(data, &s.IRI, &s.Types, s.fields(), &s.Extra)
}

func (c *Correspondence) fields() []ldField {
	return append(descriptiveFields(&c.Descriptive),
		ldField{KeyCreated, &c.Created},
		ldField{KeyCreator, &c.Creators},
		ldField{KeyVersionInfo, &c.Version},
		ldField{KeyCompares, &c.Compares},
		ldField{KeyMadeOf, &c.MadeOfs},
	)
}

func (c Correspondence) MarshalJSON() ([]byte, error) {
	return encodeDocument(c.IRI, c.Types, c.fields(), c.Extra)
}

func (c *Correspondence) UnmarshalJSON(data []byte) error {
	return decodeDocument(data, &c.IRI, &c.Types, c.fields(), &c.Extra)
}

func (a *Association) fields() []ldField {
	return []ldField{
		{KeySourceConcept, &a.SourceConcepts},
		{KeyTargetConcept, &a.TargetConcepts},
	}
}

func (a Association) MarshalJSON() ([]byte, error) {
	return encodeDocument(a.IRI, a.Types, a.fields(), a.Extra)
}

func (a *Association) UnmarshalJSON(data []byte) error {
	if err := decodeDocument(data, &a.IRI, &a.Types, a.fields(), &a.Extra); err != nil {
		return err
	}
	a.Kind = a.DeriveKind()
	return nil
}

// MarshalJSON encodes one edge as {"@id": source, "<predicate IRI>": [{"@id": target}]}.
func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		KeyID:             r.Source,
		r.Predicate.IRI(): []Node{{ID: r.Target}},
	})
}

// DecodeRelationships parses a list of relationship documents. Every predicate key
// of every document yields one edge per target node.
func DecodeRelationships(data []byte) ([]Relationship, error) {
	var docs []map[string]json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("relationships must be a list of JSON-LD objects: %w", err)
	}
	var out []Relationship
	for i, doc := range docs {
		var source string
		if err := json.Unmarshal(doc[KeyID], &source); err != nil || source == "" {
			return nil, fmt.Errorf("relationship %d: missing %s", i, KeyID)
		}
		keys := make([]string, 0, len(doc))
		for k := range doc {
			if k != KeyID {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		if len(keys) == 0 {
			return nil, fmt.Errorf("relationship %d: no predicate given", i)
		}
		for _, k := range keys {
			p, err := ParsePredicate(k)
			if err != nil {
				return nil, fmt.Errorf("relationship %d: %w", i, err)
			}
			var targets []Node
			if err := json.Unmarshal(doc[k], &targets); err != nil {
				return nil, fmt.Errorf("relationship %d: %s must be a list of nodes", i, k)
			}
			for _, t := range targets {
				out = append(out, Relationship{Source: source, Target: t.ID, Predicate: p})
			}
		}
	}
	return out, nil
}

// MadeOf is an add/remove request for the associations of a correspondence.
type MadeOf struct {
	Correspondence string
	Associations   []Node
}

func (m MadeOf) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		KeyID:     m.Correspondence,
		KeyMadeOf: nonNil(m.Associations),
	})
}

func (m *MadeOf) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   string `json:"@id"`
		Made []Node `json:"http://rdf-vocabulary.ddialliance.org/xkos#madeOf"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Correspondence = raw.ID
	m.Associations = raw.Made
	return nil
}

// SplitInlineRelationships removes skos:broader and skos:narrower node lists from the
// concept's passthrough fields and returns them as edges, narrower already inverted.
func SplitInlineRelationships(c *Concept) ([]Relationship, error) {
	broader, err := takeNodes(c.Extra, KeyBroader)
	if err != nil {
		return nil, err
	}
	narrower, err := takeNodes(c.Extra, KeyNarrower)
	if err != nil {
		return nil, err
	}
	out := make([]Relationship, 0, len(broader)+len(narrower))
	for _, n := range broader {
		out = append(out, Relationship{Source: c.IRI, Target: n.ID, Predicate: Broader})
	}
	for _, n := range narrower {
		out = append(out, Relationship{Source: c.IRI, Target: n.ID, Predicate: Narrower}.Normalized())
	}
	return out, nil
}

// HasInlineRelationships reports whether the concept document carries skos:broader or skos:narrower.
func HasInlineRelationships(c *Concept) bool {
	_, b := c.Extra[KeyBroader]
	_, n := c.Extra[KeyNarrower]
	return b || n
}

func takeNodes(extra map[string]any, key string) ([]Node, error) {
	v, ok := extra[key]
	if !ok {
		return nil, nil
	}
	delete(extra, key)
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("%s must be a list of nodes", key)
	}
	return nodes, nil
}
