package kos

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/pkg/apperror"
)

// Handler handles HTTP requests for the KOS graph.
type Handler struct {
	svc     *Service
	baseURL string
}

// NewHandler creates a new KOS handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, baseURL: strings.TrimSuffix(cfg.KOS.BaseURL, "/")}
}

// decodeBody reads a JSON-LD request body into a T.
func decodeBody[T any](c echo.Context) (*T, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperror.ErrBadRequest.WithMessage("unable to read request body")
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, apperror.ErrBadRequest.WithMessage("invalid JSON-LD document: " + err.Error())
	}
	return v, nil
}

// iriParam takes the IRI from the wildcard path segment, falling back to ?iri=.
func iriParam(c echo.Context) (string, error) {
	iri := c.Param("*")
	if iri != "" {
		unescaped, err := url.PathUnescape(iri)
		if err != nil {
			return "", apperror.ErrBadRequest.WithMessage("invalid IRI path")
		}
		iri = unescaped
	}
	if iri == "" {
		iri = c.QueryParam("iri")
	}
	if iri == "" {
		return "", apperror.ErrBadRequest.WithMessage("iri is required")
	}
	return iri, nil
}

func boolQuery(c echo.Context, name string, def bool) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.ErrBadRequest.WithMessagef("%s must be a boolean", name)
	}
	return v, nil
}

// ListConcepts returns every concept, or one concept when ?iri= is given.
func (h *Handler) ListConcepts(c echo.Context) error {
	if c.QueryParam("iri") != "" {
		return h.GetConcept(c)
	}
	concepts, err := h.svc.ConceptList(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, concepts)
}

// GetConcept handles GET /v1/concepts/*
func (h *Handler) GetConcept(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	concept, err := h.svc.ConceptGet(c.Request().Context(), iri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, concept)
}

// CreateConcept handles POST /v1/concepts. skos:broader and skos:narrower in the body become
// relationships created together with the concept.
func (h *Handler) CreateConcept(c echo.Context) error {
	concept, err := decodeBody[Concept](c)
	if err != nil {
		return err
	}
	rels, err := SplitInlineRelationships(concept)
	if err != nil {
		return apperror.ErrValidation.WithMessage(err.Error())
	}
	if err := ValidateConcept(concept); err != nil {
		return err
	}
	if len(rels) > 0 {
		if err := ValidateRelationships(rels); err != nil {
			return err
		}
	}
	created, err := h.svc.ConceptCreate(c.Request().Context(), concept, rels)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

// UpdateConcept handles PUT /v1/concepts
func (h *Handler) UpdateConcept(c echo.Context) error {
	concept, err := decodeBody[Concept](c)
	if err != nil {
		return err
	}
	if err := ValidateConcept(concept); err != nil {
		return err
	}
	updated, err := h.svc.ConceptUpdate(c.Request().Context(), concept)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteConcept handles DELETE /v1/concepts?iri=
func (h *Handler) DeleteConcept(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.ConceptDelete(c.Request().Context(), iri); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// BroaderConcepts handles GET /v1/concepts/broader?iri=&scheme=
func (h *Handler) BroaderConcepts(c echo.Context) error {
	iri := c.QueryParam("iri")
	scheme := c.QueryParam("scheme")
	if iri == "" || scheme == "" {
		return apperror.ErrBadRequest.WithMessage("iri and scheme are required")
	}
	concepts, err := h.svc.ConceptBroader(c.Request().Context(), iri, scheme)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, concepts)
}

func (h *Handler) ListConceptSchemes(c echo.Context) error {
	if c.QueryParam("iri") != "" {
		return h.GetConceptScheme(c)
	}
	schemes, err := h.svc.ConceptSchemeList(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schemes)
}

func (h *Handler) GetConceptScheme(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	cs, err := h.svc.ConceptSchemeGet(c.Request().Context(), iri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

// SchemeConcepts handles GET /v1/concept_schemes/concepts?iri=&top_concepts_only=
func (h *Handler) SchemeConcepts(c echo.Context) error {
	iri := c.QueryParam("iri")
	if iri == "" {
		return apperror.ErrBadRequest.WithMessage("iri is required")
	}
	topOnly, err := boolQuery(c, "top_concepts_only", false)
	if err != nil {
		return err
	}
	concepts, err := h.svc.ConceptsForScheme(c.Request().Context(), iri, topOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, concepts)
}

func (h *Handler) CreateConceptScheme(c echo.Context) error {
	cs, err := decodeBody[ConceptScheme](c)
	if err != nil {
		return err
	}
	if err := ValidateConceptScheme(cs); err != nil {
		return err
	}
	created, err := h.svc.ConceptSchemeCreate(c.Request().Context(), cs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateConceptScheme(c echo.Context) error {
	cs, err := decodeBody[ConceptScheme](c)
	if err != nil {
		return err
	}
	if err := ValidateConceptScheme(cs); err != nil {
		return err
	}
	updated, err := h.svc.ConceptSchemeUpdate(c.Request().Context(), cs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteConceptScheme(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.ConceptSchemeDelete(c.Request().Context(), iri); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRelationships handles GET /v1/relationships, or GetRelationships when ?iri= is given.
func (h *Handler) ListRelationships(c echo.Context) error {
	if c.QueryParam("iri") != "" {
		return h.GetRelationships(c)
	}
	rels, err := h.svc.RelationshipsList(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}

// GetRelationships handles GET /v1/relationships/*?source=true&target=false
func (h *Handler) GetRelationships(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	source, err := boolQuery(c, "source", true)
	if err != nil {
		return err
	}
	target, err := boolQuery(c, "target", false)
	if err != nil {
		return err
	}
	rels, err := h.svc.RelationshipsGet(c.Request().Context(), iri, source, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rels)
}

func (h *Handler) decodeRelationships(c echo.Context) ([]Relationship, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, apperror.ErrBadRequest.WithMessage("unable to read request body")
	}
	rels, err := DecodeRelationships(data)
	if err != nil {
		return nil, apperror.ErrValidation.WithMessage(err.Error())
	}
	if err := ValidateRelationships(rels); err != nil {
		return nil, err
	}
	return rels, nil
}

func (h *Handler) CreateRelationships(c echo.Context) error {
	rels, err := h.decodeRelationships(c)
	if err != nil {
		return err
	}
	created, err := h.svc.RelationshipsCreate(c.Request().Context(), rels)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateRelationships(c echo.Context) error {
	rels, err := h.decodeRelationships(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.RelationshipsUpdate(c.Request().Context(), rels)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteRelationships handles DELETE /v1/relationships
func (h *Handler) DeleteRelationships(c echo.Context) error {
	rels, err := h.decodeRelationships(c)
	if err != nil {
		return err
	}
	n, err := h.svc.RelationshipsDelete(c.Request().Context(), rels)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"detail": "Relationships (possibly) deleted",
		"count":  n,
	})
}

func (h *Handler) ListCorrespondences(c echo.Context) error {
	if c.QueryParam("iri") != "" {
		return h.GetCorrespondence(c)
	}
	out, err := h.svc.CorrespondenceList(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCorrespondence(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	corr, err := h.svc.CorrespondenceGet(c.Request().Context(), iri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, corr)
}

func (h *Handler) CreateCorrespondence(c echo.Context) error {
	corr, err := decodeBody[Correspondence](c)
	if err != nil {
		return err
	}
	if err := ValidateCorrespondence(corr); err != nil {
		return err
	}
	created, err := h.svc.CorrespondenceCreate(c.Request().Context(), corr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateCorrespondence(c echo.Context) error {
	corr, err := decodeBody[Correspondence](c)
	if err != nil {
		return err
	}
	if err := ValidateCorrespondence(corr); err != nil {
		return err
	}
	updated, err := h.svc.CorrespondenceUpdate(c.Request().Context(), corr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteCorrespondence(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.CorrespondenceDelete(c.Request().Context(), iri); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListAssociations handles GET /v1/associations with optional correspondence, source_concept,
// target_concept and kind filters.
func (h *Handler) ListAssociations(c echo.Context) error {
	if c.QueryParam("iri") != "" {
		return h.GetAssociation(c)
	}
	f := AssociationFilter{
		Correspondence: c.QueryParam("correspondence"),
		SourceConcept:  c.QueryParam("source_concept"),
		TargetConcept:  c.QueryParam("target_concept"),
		Kind:           AssociationKind(c.QueryParam("kind")),
	}
	if f.Kind != "" && f.Kind != AssociationSimple && f.Kind != AssociationConditional {
		return apperror.ErrValidation.WithMessagef("kind must be `%s` or `%s`", AssociationSimple, AssociationConditional)
	}
	var (
		out []Association
		err error
	)
	if f == (AssociationFilter{}) {
		out, err = h.svc.AssociationList(c.Request().Context())
	} else {
		out, err = h.svc.AssociationFind(c.Request().Context(), f)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetAssociation(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	a, err := h.svc.AssociationGet(c.Request().Context(), iri)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAssociation(c echo.Context) error {
	a, err := decodeBody[Association](c)
	if err != nil {
		return err
	}
	if err := ValidateAssociation(a); err != nil {
		return err
	}
	created, err := h.svc.AssociationCreate(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, created)
}

func (h *Handler) UpdateAssociation(c echo.Context) error {
	a, err := decodeBody[Association](c)
	if err != nil {
		return err
	}
	if err := ValidateAssociation(a); err != nil {
		return err
	}
	updated, err := h.svc.AssociationUpdate(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAssociation(c echo.Context) error {
	iri, err := iriParam(c)
	if err != nil {
		return err
	}
	if err := h.svc.AssociationDelete(c.Request().Context(), iri); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) decodeMadeOf(c echo.Context) (*MadeOf, error) {
	m, err := decodeBody[MadeOf](c)
	if err != nil {
		return nil, err
	}
	if err := ValidateMadeOf(m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddMadeOf handles POST /v1/made_of
func (h *Handler) AddMadeOf(c echo.Context) error {
	m, err := h.decodeMadeOf(c)
	if err != nil {
		return err
	}
	corr, err := h.svc.MadeOfAdd(c.Request().Context(), *m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, corr)
}

// RemoveMadeOf handles DELETE /v1/made_of
func (h *Handler) RemoveMadeOf(c echo.Context) error {
	m, err := h.decodeMadeOf(c)
	if err != nil {
		return err
	}
	corr, err := h.svc.MadeOfRemove(c.Request().Context(), *m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, corr)
}

var kindPaths = map[Kind]string{
	KindConcept:        "/v1/concepts",
	KindConceptScheme:  "/v1/concept_schemes",
	KindCorrespondence: "/v1/correspondences",
	KindAssociation:    "/v1/associations",
}

// Resolve handles GET /* for IRIs minted under the public base URL by redirecting to the
// typed endpoint of whatever object the IRI names.
func (h *Handler) Resolve(c echo.Context) error {
	iri := h.baseURL + c.Request().URL.Path
	kind, err := h.svc.ObjectType(c.Request().Context(), iri)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusTemporaryRedirect, kindPaths[kind]+"?iri="+url.QueryEscape(iri))
}
