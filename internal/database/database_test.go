package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/emergent-company/emergent.kos/internal/testutil"
)

func countRows(t *testing.T, db bun.IDB) int {
	t.Helper()
	var n int
	require.NoError(t, db.NewRaw("SELECT count(*) FROM concept_scheme").Scan(context.Background(), &n))
	return n
}

func insertScheme(ctx context.Context, db bun.IDB, iri string) error {
	_, err := db.NewInsert().
		TableExpr("concept_scheme").
		Model(&map[string]any{"iri": iri}).
		Exec(ctx)
	return err
}

func TestInTx_Commit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	err := InTx(t.Context(), db, func(tx bun.IDB) error {
		return insertScheme(t.Context(), tx, "http://example.org/s")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

func TestInTx_RollbackOnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	boom := errors.New("boom")

	err := InTx(t.Context(), db, func(tx bun.IDB) error {
		if err := insertScheme(t.Context(), tx, "http://example.org/s"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db))
}

func TestSafeTx_RollbackAfterCommit(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	tx, err := BeginSafeTx(t.Context(), db)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
}

func TestQueryLoggingHook(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	var buf bytes.Buffer
	AddQueryLogging(db, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), time.Hour)

	_, err := db.ExecContext(t.Context(), "SELECT 1")
	require.NoError(t, err)
	_, err = db.ExecContext(t.Context(), "SELECT * FROM missing_table")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=query")
	assert.Contains(t, out, "level=ERROR msg=\"query error\"")
	assert.NotContains(t, out, "slow query")
}

func TestQueryLoggingHook_Slow(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	var buf bytes.Buffer
	AddQueryLogging(db, slog.New(slog.NewTextHandler(&buf, nil)), time.Nanosecond)

	require.NoError(t, insertScheme(t.Context(), db, "http://example.org/s"))

	out := buf.String()
	assert.Contains(t, out, "level=WARN msg=\"slow query\"")
	assert.Contains(t, out, "op=INSERT")
}
