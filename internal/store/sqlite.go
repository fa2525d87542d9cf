// Package store provides core.BuildDB implementations: a SQLite-backed
// store for durable builds and an in-memory store for tests.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anvil-build/anvil/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteDB is a core.BuildDB backed by a SQLite database file. It keeps
// a single connection open (SQLite only supports one writer at a time)
// in WAL mode so readers are not blocked by an in-flight write.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLiteDB opens (creating if necessary) the SQLite database at
// path and applies its schema. path may be ":memory:" for a private,
// process-local database.
func OpenSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO build_meta (id, iteration) VALUES (0, 0)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: seed build_meta: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) LookupRuleResult(ctx context.Context, key core.Key) (core.RuleResult, bool, error) {
	var value []byte
	var builtAt, computedAt int64
	var depsBlob []byte
	row := s.db.QueryRowContext(ctx,
		`SELECT value, built_at, computed_at, dependencies FROM rule_results WHERE key = ?`,
		[]byte(key))
	switch err := row.Scan(&value, &builtAt, &computedAt, &depsBlob); err {
	case nil:
	case sql.ErrNoRows:
		return core.RuleResult{}, false, nil
	default:
		return core.RuleResult{}, false, fmt.Errorf("store: lookup %q: %w", key, err)
	}

	deps, err := unmarshalDependencies(depsBlob)
	if err != nil {
		return core.RuleResult{}, false, err
	}
	return core.RuleResult{
		Value:        core.Value(value),
		BuiltAt:      uint64(builtAt),
		ComputedAt:   uint64(computedAt),
		Dependencies: deps,
	}, true, nil
}

func (s *SQLiteDB) SetRuleResult(ctx context.Context, key core.Key, result core.RuleResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_results (key, value, built_at, computed_at, dependencies)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   built_at = excluded.built_at,
		   computed_at = excluded.computed_at,
		   dependencies = excluded.dependencies`,
		[]byte(key), []byte(result.Value), int64(result.BuiltAt), int64(result.ComputedAt),
		marshalDependencies(result.Dependencies))
	if err != nil {
		return fmt.Errorf("store: set result for %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteDB) GetCurrentIteration(ctx context.Context) (uint64, error) {
	var iteration int64
	err := s.db.QueryRowContext(ctx, `SELECT iteration FROM build_meta WHERE id = 0`).Scan(&iteration)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: get iteration: %w", err)
	}
	return uint64(iteration), nil
}

func (s *SQLiteDB) SetCurrentIteration(ctx context.Context, iteration uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_meta (id, iteration) VALUES (0, ?)
		 ON CONFLICT(id) DO UPDATE SET iteration = excluded.iteration`,
		int64(iteration))
	if err != nil {
		return fmt.Errorf("store: set iteration: %w", err)
	}
	return nil
}

func (s *SQLiteDB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read user_version: %w", err)
	}
	return version, nil
}

func (s *SQLiteDB) SetSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("store: set user_version: %w", err)
	}
	return nil
}

// Reset drops every persisted rule result and the iteration counter,
// used by Engine.AttachDB when the stored schema version doesn't match
// and the caller allows recreation.
func (s *SQLiteDB) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rule_results`); err != nil {
		return fmt.Errorf("store: reset rule_results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM build_meta`); err != nil {
		return fmt.Errorf("store: reset build_meta: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO build_meta (id, iteration) VALUES (0, 0)`); err != nil {
		return fmt.Errorf("store: reseed build_meta: %w", err)
	}
	return nil
}

// RuleRecord is one persisted rule result, named for inspect/listing
// use where the key is needed alongside its RuleResult.
type RuleRecord struct {
	Key core.Key
	core.RuleResult
}

// ListRuleResults returns every persisted rule record, ordered by key.
// It exists for inspection tooling (cmd/anvil's inspect command); the
// engine itself only ever looks up one key at a time.
func (s *SQLiteDB) ListRuleResults(ctx context.Context) ([]RuleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, built_at, computed_at, dependencies FROM rule_results ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("store: list rule results: %w", err)
	}
	defer rows.Close()

	var records []RuleRecord
	for rows.Next() {
		var key, value, depsBlob []byte
		var builtAt, computedAt int64
		if err := rows.Scan(&key, &value, &builtAt, &computedAt, &depsBlob); err != nil {
			return nil, fmt.Errorf("store: scan rule result: %w", err)
		}
		deps, err := unmarshalDependencies(depsBlob)
		if err != nil {
			return nil, err
		}
		records = append(records, RuleRecord{
			Key: core.Key(key),
			RuleResult: core.RuleResult{
				Value:        core.Value(value),
				BuiltAt:      uint64(builtAt),
				ComputedAt:   uint64(computedAt),
				Dependencies: deps,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rule results: %w", err)
	}
	return records, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

var _ core.BuildDB = (*SQLiteDB)(nil)
