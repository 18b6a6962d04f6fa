// Package main provides the entry point for the KOS graph API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/emergent-company/emergent.kos/domain/health"
	"github.com/emergent-company/emergent.kos/domain/kos"
	"github.com/emergent-company/emergent.kos/domain/scheduler"
	"github.com/emergent-company/emergent.kos/domain/search"
	"github.com/emergent-company/emergent.kos/domain/tracing"
	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/internal/database"
	"github.com/emergent-company/emergent.kos/internal/migrate"
	"github.com/emergent-company/emergent.kos/internal/server"
	"github.com/emergent-company/emergent.kos/pkg/logger"
)

func main() {
	// .env.local takes precedence over .env
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,
		tracing.Module,

		// Domain modules
		scheduler.Module,
		search.Module,
		kos.Module,
		health.Module,
	).Run()
}
