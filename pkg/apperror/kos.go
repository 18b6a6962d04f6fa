package apperror

import "net/http"

// Knowledge organization system error kinds. Messages are overridden with the offending IRIs when raised.
var (
	ErrConceptNotFound        = New(http.StatusNotFound, "concept_not_found", "Concept not found")
	ErrConceptSchemeNotFound  = New(http.StatusNotFound, "concept_scheme_not_found", "Concept scheme not found")
	ErrRelationshipNotFound   = New(http.StatusNotFound, "relationship_not_found", "Relationship not found")
	ErrCorrespondenceNotFound = New(http.StatusNotFound, "correspondence_not_found", "Correspondence not found")
	ErrAssociationNotFound    = New(http.StatusNotFound, "association_not_found", "Association not found")
	ErrObjectNotFound         = New(http.StatusNotFound, "object_not_found", "KOS graph object not found")

	ErrDuplicateIRI          = New(http.StatusConflict, "duplicate_iri", "Object with this IRI already exists")
	ErrDuplicateRelationship = New(http.StatusConflict, "duplicate_relationship", "Relationship already exists")

	ErrHierarchicAcrossScheme       = New(http.StatusUnprocessableEntity, "hierarchic_relationship_across_concept_scheme", "Hierarchical relationship spans concept schemes")
	ErrRelationshipReferencesScheme = New(http.StatusUnprocessableEntity, "relationships_references_concept_scheme", "Relationship endpoint is a concept scheme")
	ErrConceptSchemesNotInDatabase  = New(http.StatusUnprocessableEntity, "concept_schemes_not_in_database", "None of the concept schemes exist")
	ErrRelationshipsInCurrentScheme = New(http.StatusUnprocessableEntity, "relationships_in_current_concept_scheme", "Concept scheme still has hierarchical relationships")
	ErrSelfReferentialRelationship  = New(http.StatusUnprocessableEntity, "self_referential_relationship", "Relationship source and target are identical")
	ErrUnknownLanguage              = New(http.StatusUnprocessableEntity, "unknown_language", "Search engine not configured for given language")
	ErrSearchNotConfigured          = New(http.StatusServiceUnavailable, "search_not_configured", "Search engine not available")
	ErrReindexInProgress            = New(http.StatusConflict, "reindex_in_progress", "A search reindex is already running")
	ErrCompensationFailed           = New(http.StatusInternalServerError, "compensation_failed", "Compensating action failed; manual cleanup required")
	ErrMissingAuthToken             = New(http.StatusBadRequest, "missing_auth_token", "X-KOS-Auth-Token header missing or invalid")
)
