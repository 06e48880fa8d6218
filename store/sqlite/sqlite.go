/*
Package sqlite provides a SQLite-backed billing.TxStore.

PURPOSE:
  Supplies the SQLite dialect (schema, unique-violation detection) to the
  shared database/sql store in store/sqlstore.

KEY TABLES:
  payment_concepts:            Concept definitions (never hard-deleted)
  payment_concept_assignments: Concept-to-scope bindings
  units:                       Unit read model (code, building, aliquot)
  charge_runs:                 One row per generated (concept, period)
  quotas:                      Per-unit obligations
  quota_adjustments:           Append-only correction audit
  payments:                    Payments made by units
  payment_applications:        Payment-to-quota allocations

UNIQUENESS (the authoritative idempotency and duplicate checks):
  charge_runs(concept_id, period_year, period_month)
  quotas(concept_id, unit_id, period_year, period_month)
  payment_concept_assignments(concept_id, scope_type, scope_key)

MONEY AND DATES:
  Amounts are TEXT holding decimal strings so no value passes through a
  float. Dates are TEXT "YYYY-MM-DD"; timestamps are fixed-width RFC3339.

CONCURRENCY:
  The pool is limited to ONE connection. SQLite allows a single writer, and
  ":memory:" databases exist per connection, so a second connection would
  see an empty database. Transactions therefore serialize.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := billing.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/sqlstore: Queries shared with PostgreSQL
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/condo-ledger/store/sqlstore"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	*sqlstore.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{Store: sqlstore.New(db, Dialect())}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Dialect returns the SQLite flavor of the shared store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:        "sqlite",
		Schema:      schema,
		TextTimes:   true,
		UniqueTable: uniqueTable,
	}
}

// uniqueTable extracts the table from "UNIQUE constraint failed: quotas.concept_id, ...".
func uniqueTable(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return "", false
	}
	msg := sqliteErr.Error()
	i := strings.Index(msg, "failed: ")
	if i < 0 {
		return "", false
	}
	column := msg[i+len("failed: "):]
	table, _, ok := strings.Cut(column, ".")
	return table, ok
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS payment_concepts (
		id TEXT PRIMARY KEY,
		condominium_id TEXT NOT NULL,
		building_id TEXT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		concept_type TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		is_recurring BOOLEAN NOT NULL DEFAULT 0,
		recurrence_period TEXT NOT NULL DEFAULT '',
		issue_day INTEGER NOT NULL DEFAULT 0 CHECK (issue_day BETWEEN 0 AND 28),
		due_day INTEGER NOT NULL DEFAULT 0 CHECK (due_day BETWEEN 0 AND 28),
		late_fee_type TEXT NOT NULL DEFAULT 'none',
		late_fee_value TEXT NOT NULL DEFAULT '0',
		late_fee_grace_days INTEGER NOT NULL DEFAULT 0,
		early_discount_type TEXT NOT NULL DEFAULT 'none',
		early_discount_value TEXT NOT NULL DEFAULT '0',
		early_discount_days INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_concepts_condominium
		ON payment_concepts(condominium_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS payment_concept_assignments (
		id TEXT PRIMARY KEY,
		concept_id TEXT NOT NULL REFERENCES payment_concepts(id),
		scope_type TEXT NOT NULL,
		condominium_id TEXT NOT NULL,
		building_id TEXT,
		unit_id TEXT,
		scope_key TEXT NOT NULL,
		distribution_method TEXT NOT NULL,
		amount TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (concept_id, scope_type, scope_key)
	)`,

	`CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		condominium_id TEXT NOT NULL,
		building_id TEXT,
		code TEXT NOT NULL,
		aliquot TEXT NOT NULL DEFAULT '0',
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_units_condominium
		ON units(condominium_id, code)`,

	`CREATE TABLE IF NOT EXISTS charge_runs (
		id TEXT PRIMARY KEY,
		concept_id TEXT NOT NULL REFERENCES payment_concepts(id),
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL CHECK (period_month BETWEEN 1 AND 12),
		quotas_created INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (concept_id, period_year, period_month)
	)`,

	`CREATE TABLE IF NOT EXISTS quotas (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		concept_id TEXT NOT NULL REFERENCES payment_concepts(id),
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL CHECK (period_month BETWEEN 1 AND 12),
		base_amount TEXT NOT NULL,
		interest_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL,
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (concept_id, unit_id, period_year, period_month)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotas_unit
		ON quotas(unit_id, status)`,

	`CREATE TABLE IF NOT EXISTS quota_adjustments (
		id TEXT PRIMARY KEY,
		quota_id TEXT NOT NULL REFERENCES quotas(id),
		previous_amount TEXT NOT NULL,
		new_amount TEXT NOT NULL,
		adjustment_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_adjustments_quota
		ON quota_adjustments(quota_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS payment_applications (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL REFERENCES payments(id),
		quota_id TEXT NOT NULL REFERENCES quotas(id),
		applied_amount TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_applications_payment
		ON payment_applications(payment_id)`,
}
