package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/emergent-company/emergent.kos/internal/config"
	"github.com/emergent-company/emergent.kos/internal/migrate"
)

const postgresImage = "postgres:16-alpine"

// TestDB holds test database resources
type TestDB struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	DB      *bun.DB
	cleanup func()
}

// Close releases test database resources
func (t *TestDB) Close() {
	if t.cleanup != nil {
		t.cleanup()
	}
}

// SkipWithoutDocker skips integration tests under -short or when KOS_SKIP_CONTAINERS is set.
func SkipWithoutDocker(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv("KOS_SKIP_CONTAINERS") != "" {
		t.Skip("KOS_SKIP_CONTAINERS set")
	}
}

// SetupPostgres starts a throwaway Postgres container and applies the goose migrations to it.
func SetupPostgres(ctx context.Context) (*TestDB, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "kos",
			"POSTGRES_PASSWORD": "kos",
			"POSTGRES_DB":       "kos_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		terminate()
		return nil, fmt.Errorf("container port: %w", err)
	}

	cfg := &config.Config{Database: config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "kos",
		Password: "kos",
		Database: "kos_test",
		SSLMode:  "disable",
	}}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		terminate()
		return nil, err
	}
	poolConfig.MaxConns = 5
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		terminate()
		return nil, fmt.Errorf("connect to test db: %w", err)
	}

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	if err := migrate.NewMigrator(db.DB, zap.NewNop()).Up(ctx); err != nil {
		db.Close()
		pool.Close()
		terminate()
		return nil, fmt.Errorf("migrate test db: %w", err)
	}

	return &TestDB{
		Config: cfg,
		Pool:   pool,
		DB:     db,
		cleanup: func() {
			db.Close()
			pool.Close()
			terminate()
		},
	}, nil
}

// Truncate empties every KOS table between tests.
func (t *TestDB) Truncate(ctx context.Context) error {
	_, err := t.DB.ExecContext(ctx,
		"TRUNCATE relationship, association, correspondence, concept, concept_scheme RESTART IDENTITY")
	return err
}
