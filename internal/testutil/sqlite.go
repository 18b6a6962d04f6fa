// Package testutil provides databases for tests: an in-memory SQLite database for unit tests and a
// Postgres container for integration tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// sqliteSchema mirrors migrations/00001_kos_schema.sql with JSON stored as TEXT.
var sqliteSchema = []string{
	`CREATE TABLE concept_scheme (
		iri           TEXT PRIMARY KEY,
		types         TEXT NOT NULL DEFAULT '[]',
		pref_labels   TEXT NOT NULL DEFAULT '[]',
		alt_labels    TEXT NOT NULL DEFAULT '[]',
		hidden_labels TEXT NOT NULL DEFAULT '[]',
		definitions   TEXT NOT NULL DEFAULT '[]',
		notations     TEXT NOT NULL DEFAULT '[]',
		notes         TEXT NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT '[]',
		created       TEXT NOT NULL DEFAULT '[]',
		creators      TEXT NOT NULL DEFAULT '[]',
		version       TEXT NOT NULL DEFAULT '[]',
		extra         TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE concept (
		iri            TEXT PRIMARY KEY,
		types          TEXT NOT NULL DEFAULT '[]',
		pref_labels    TEXT NOT NULL DEFAULT '[]',
		alt_labels     TEXT NOT NULL DEFAULT '[]',
		hidden_labels  TEXT NOT NULL DEFAULT '[]',
		definitions    TEXT NOT NULL DEFAULT '[]',
		notations      TEXT NOT NULL DEFAULT '[]',
		notes          TEXT NOT NULL DEFAULT '{}',
		status         TEXT NOT NULL DEFAULT '[]',
		schemes        TEXT NOT NULL DEFAULT '[]',
		top_concept_of TEXT NOT NULL DEFAULT '[]',
		extra          TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE correspondence (
		iri           TEXT PRIMARY KEY,
		types         TEXT NOT NULL DEFAULT '[]',
		pref_labels   TEXT NOT NULL DEFAULT '[]',
		alt_labels    TEXT NOT NULL DEFAULT '[]',
		hidden_labels TEXT NOT NULL DEFAULT '[]',
		definitions   TEXT NOT NULL DEFAULT '[]',
		notations     TEXT NOT NULL DEFAULT '[]',
		notes         TEXT NOT NULL DEFAULT '{}',
		status        TEXT NOT NULL DEFAULT '[]',
		created       TEXT NOT NULL DEFAULT '[]',
		creators      TEXT NOT NULL DEFAULT '[]',
		version       TEXT NOT NULL DEFAULT '[]',
		compares      TEXT NOT NULL DEFAULT '[]',
		made_ofs      TEXT NOT NULL DEFAULT '[]',
		extra         TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE association (
		iri             TEXT PRIMARY KEY,
		types           TEXT NOT NULL DEFAULT '[]',
		source_concepts TEXT NOT NULL DEFAULT '[]',
		target_concepts TEXT NOT NULL DEFAULT '[]',
		kind            TEXT NOT NULL DEFAULT 'simple',
		extra           TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE relationship (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		source    TEXT NOT NULL,
		target    TEXT NOT NULL,
		predicate TEXT NOT NULL,
		CONSTRAINT relationship_source_target_uniqueness UNIQUE (source, target),
		CONSTRAINT relationship_no_self_loop CHECK (source <> target),
		CONSTRAINT relationship_predicate_known CHECK (predicate IN (
			'broader', 'broaderTransitive', 'narrowerTransitive', 'topConceptOf', 'hasTopConcept',
			'broadMatch', 'closeMatch', 'exactMatch', 'narrowMatch', 'relatedMatch'
		))
	)`,
}

// NewSQLiteDB opens a private in-memory SQLite database with the KOS schema. It is closed when
// the test ends.
func NewSQLiteDB(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	// one connection, so every statement sees the same in-memory database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, stmt := range sqliteSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}
