package kos

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

// kosValidate checks request documents after JSON-LD decoding.
var kosValidate *validator.Validate

var typeAliases = map[string]string{
	"concept":        TypeConcept,
	"scheme":         TypeConceptScheme,
	"correspondence": TypeCorrespondence,
	"association":    TypeAssociation,
}

func init() {
	kosValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = kosValidate.RegisterValidation("iri", validateIRI)
	_ = kosValidate.RegisterValidation("hastype", validateHasType)
	_ = kosValidate.RegisterValidation("onelang", validateOnePerLanguage)
	_ = kosValidate.RegisterValidation("rfc3339", validateRFC3339)
	kosValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("ld"); name != "" {
			return name
		}
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
}

// validateIRI accepts absolute IRIs such as http://example.org/x or urn:x:y.
func validateIRI(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

func validateHasType(fl validator.FieldLevel) bool {
	want, ok := typeAliases[fl.Param()]
	if !ok {
		return false
	}
	types, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func validateOnePerLanguage(fl validator.FieldLevel) bool {
	literals, ok := fl.Field().Interface().([]Literal)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(literals))
	for _, l := range literals {
		if _, dup := seen[l.Language]; dup {
			return false
		}
		seen[l.Language] = struct{}{}
	}
	return true
}

func validateRFC3339(fl validator.FieldLevel) bool {
	literals, ok := fl.Field().Interface().([]Literal)
	if !ok {
		return false
	}
	for _, l := range literals {
		if _, err := time.Parse(time.RFC3339, l.Value); err != nil {
			return false
		}
	}
	return true
}

type conceptShape struct {
	IRI          string    `ld:"@id" validate:"required,iri"`
	Types        []string  `ld:"@type" validate:"hastype=concept"`
	PrefLabels   []Literal `ld:"skos:prefLabel" validate:"min=1,onelang,dive"`
	AltLabels    []Literal `ld:"skos:altLabel" validate:"dive"`
	HiddenLabels []Literal `ld:"skos:hiddenLabel" validate:"dive"`
	Definitions  []Literal `ld:"skos:definition" validate:"onelang,dive"`
	Schemes      []Node    `ld:"skos:inScheme" validate:"min=1,dive"`
	TopConceptOf []Node    `ld:"skos:topConceptOf" validate:"dive"`
}

type conceptSchemeShape struct {
	IRI         string    `ld:"@id" validate:"required,iri"`
	Types       []string  `ld:"@type" validate:"hastype=scheme"`
	PrefLabels  []Literal `ld:"skos:prefLabel" validate:"min=1,onelang,dive"`
	Definitions []Literal `ld:"skos:definition" validate:"min=1,onelang,dive"`
	Created     []Literal `ld:"dcterms:created" validate:"len=1,rfc3339,dive"`
	Creators    []Node    `ld:"dcterms:creator" validate:"dive"`
	Version     []Literal `ld:"owl:versionInfo" validate:"len=1,dive"`
}

type correspondenceShape struct {
	IRI         string    `ld:"@id" validate:"required,iri"`
	Types       []string  `ld:"@type" validate:"hastype=correspondence"`
	PrefLabels  []Literal `ld:"skos:prefLabel" validate:"onelang,dive"`
	Definitions []Literal `ld:"skos:definition" validate:"onelang,dive"`
	Compares    []Node    `ld:"xkos:compares" validate:"min=1,dive"`
}

type associationShape struct {
	IRI            string   `ld:"@id" validate:"required,iri"`
	Types          []string `ld:"@type" validate:"hastype=association"`
	SourceConcepts []Node   `ld:"xkos:sourceConcept" validate:"min=1,dive"`
	TargetConcepts []Node   `ld:"xkos:targetConcept" validate:"min=1,dive"`
}

type relationshipShape struct {
	Source string `ld:"@id" validate:"required,iri"`
	Target string `ld:"target" validate:"required,iri"`
}

type madeOfShape struct {
	Correspondence string `ld:"@id" validate:"required,iri"`
	Associations   []Node `ld:"xkos:madeOf" validate:"min=1,dive"`
}

// ValidateConcept checks a concept document.
func ValidateConcept(c *Concept) error {
	return check(conceptShape{
		IRI:          c.IRI,
		Types:        c.Types,
		PrefLabels:   c.PrefLabels,
		AltLabels:    c.AltLabels,
		HiddenLabels: c.HiddenLabels,
		Definitions:  c.Definitions,
		Schemes:      c.Schemes,
		TopConceptOf: c.TopConceptOf,
	})
}

// ValidateConceptScheme checks a concept scheme document.
func ValidateConceptScheme(cs *ConceptScheme) error {
	return check(conceptSchemeShape{
		IRI:         cs.IRI,
		Types:       cs.Types,
		PrefLabels:  cs.PrefLabels,
		Definitions: cs.Definitions,
		Created:     cs.Created,
		Creators:    cs.Creators,
		Version:     cs.Version,
	})
}

// ValidateCorrespondence checks a correspondence document.
func ValidateCorrespondence(c *Correspondence) error {
	return check(correspondenceShape{
		IRI:         c.IRI,
		Types:       c.Types,
		PrefLabels:  c.PrefLabels,
		Definitions: c.Definitions,
		Compares:    c.Compares,
	})
}

// ValidateAssociation checks an association document.
func ValidateAssociation(a *Association) error {
	return check(associationShape{
		IRI:            a.IRI,
		Types:          a.Types,
		SourceConcepts: a.SourceConcepts,
		TargetConcepts: a.TargetConcepts,
	})
}

// ValidateRelationships checks every edge's endpoints.
func ValidateRelationships(rels []Relationship) error {
	if len(rels) == 0 {
		return apperror.ErrValidation.WithMessage("At least one relationship is required")
	}
	for _, rel := range rels {
		if err := check(relationshipShape{Source: rel.Source, Target: rel.Target}); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMadeOf checks a made_of request.
func ValidateMadeOf(m *MadeOf) error {
	return check(madeOfShape{Correspondence: m.Correspondence, Associations: m.Associations})
}

func check(shape any) error {
	err := kosValidate.Struct(shape)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.ErrValidation.WithInternal(err)
	}
	fields := make([]map[string]any, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		fields = append(fields, map[string]any{"field": name, "rule": ruleName(fe)})
		msgs = append(msgs, fmt.Sprintf("%s failed %s", name, ruleName(fe)))
	}
	return apperror.ErrValidation.
		WithMessage(strings.Join(msgs, "; ")).
		WithDetails(map[string]any{"fields": fields})
}

func ruleName(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}
