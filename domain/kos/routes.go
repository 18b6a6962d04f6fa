package kos

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers all KOS routes.
func RegisterRoutes(e *echo.Echo, h *Handler, guard *WriteGuard) {
	v1 := e.Group("/v1")
	write := guard.Require()

	concepts := v1.Group("/concepts")
	concepts.GET("", h.ListConcepts)
	concepts.GET("/broader", h.BroaderConcepts)
	concepts.GET("/*", h.GetConcept)
	concepts.POST("", h.CreateConcept, write)
	concepts.PUT("", h.UpdateConcept, write)
	concepts.DELETE("", h.DeleteConcept, write)
	concepts.DELETE("/*", h.DeleteConcept, write)

	schemes := v1.Group("/concept_schemes")
	schemes.GET("", h.ListConceptSchemes)
	schemes.GET("/concepts", h.SchemeConcepts)
	schemes.GET("/*", h.GetConceptScheme)
	schemes.POST("", h.CreateConceptScheme, write)
	schemes.PUT("", h.UpdateConceptScheme, write)
	schemes.DELETE("", h.DeleteConceptScheme, write)
	schemes.DELETE("/*", h.DeleteConceptScheme, write)

	rels := v1.Group("/relationships")
	rels.GET("", h.ListRelationships)
	rels.GET("/*", h.GetRelationships)
	rels.POST("", h.CreateRelationships, write)
	rels.PUT("", h.UpdateRelationships, write)
	rels.DELETE("", h.DeleteRelationships, write)

	corrs := v1.Group("/correspondences")
	corrs.GET("", h.ListCorrespondences)
	corrs.GET("/*", h.GetCorrespondence)
	corrs.POST("", h.CreateCorrespondence, write)
	corrs.PUT("", h.UpdateCorrespondence, write)
	corrs.DELETE("", h.DeleteCorrespondence, write)
	corrs.DELETE("/*", h.DeleteCorrespondence, write)

	assocs := v1.Group("/associations")
	assocs.GET("", h.ListAssociations)
	assocs.GET("/*", h.GetAssociation)
	assocs.POST("", h.CreateAssociation, write)
	assocs.PUT("", h.UpdateAssociation, write)
	assocs.DELETE("", h.DeleteAssociation, write)
	assocs.DELETE("/*", h.DeleteAssociation, write)

	v1.POST("/made_of", h.AddMadeOf, write)
	v1.DELETE("/made_of", h.RemoveMadeOf, write)

	// IRIs under the public base URL
	e.GET("/*", h.Resolve)
}
