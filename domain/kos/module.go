package kos

import (
	"go.uber.org/fx"
)

// Module wires the record store, relationship engine, graph service and HTTP surface.
// A kos.ConceptIndexer must be supplied by another module (see domain/search).
var Module = fx.Module("kos",
	fx.Provide(
		NewStore,
		NewRelationships,
		NewService,
		NewHandler,
		NewWriteGuard,
	),
	fx.Invoke(RegisterRoutes),
)
