/*
Package sqlstore implements billing.TxStore on database/sql.

PURPOSE:
  One set of queries serves both SQLite and PostgreSQL. A Dialect supplies
  what differs between them:
  - the schema (column types, DATE vs TEXT)
  - placeholder style (? vs $1)
  - how a unique-constraint violation is recognized
  - transaction isolation
  - whether dates are written as text

UNIQUE VIOLATIONS:
  The dialect names the table whose unique constraint fired; the store maps
  it to the billing sentinel:
    charge_runs, quotas          -> billing.ErrPeriodAlreadyGenerated
    payment_concept_assignments  -> billing.ErrDuplicateAssignment

TRANSACTIONS:
  WithTx hands fn a Store bound to the *sql.Tx, so every read inside the
  callback sees the transaction's own writes. Nothing inside fn touches the
  pool.

SEE ALSO:
  - store/sqlite: SQLite dialect
  - store/postgres: PostgreSQL dialect
  - billing/store.go: Interface contract
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warp/condo-ledger/billing"
)

// Dialect describes one SQL backend.
type Dialect struct {
	Name string

	// Schema statements, run in order by Migrate.
	Schema []string

	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool

	// TextTimes writes dates and timestamps as strings.
	TextTimes bool

	TxOptions *sql.TxOptions

	// UniqueTable reports the table of a unique-constraint violation.
	UniqueTable func(err error) (table string, ok bool)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements billing.TxStore.
type Store struct {
	*rows
	db *sql.DB
}

var _ billing.TxStore = (*Store)(nil)

func New(db *sql.DB, d Dialect) *Store {
	return &Store{rows: &rows{q: db, d: d}, db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s schema: %w", s.d.Name, err)
		}
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	tx, err := s.db.BeginTx(ctx, s.d.TxOptions)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&rows{q: tx, d: s.d}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// ROWS - billing.Store over a querier
// =============================================================================

type rows struct {
	q querier
	d Dialect
}

var _ billing.Store = (*rows)(nil)

func (r *rows) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.rebind(query), args...)
}

func (r *rows) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.rebind(query), args...)
}

func (r *rows) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.rebind(query), args...)
}

// rebind turns ? placeholders into $n for numbered dialects.
func (r *rows) rebind(query string) string {
	if !r.d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// classify maps unique violations to billing sentinels.
func (r *rows) classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if r.d.UniqueTable != nil {
		if table, ok := r.d.UniqueTable(err); ok {
			switch table {
			case "charge_runs", "quotas":
				return billing.ErrPeriodAlreadyGenerated
			case "payment_concept_assignments":
				return billing.ErrDuplicateAssignment
			}
		}
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// =============================================================================
// VALUE ENCODING
// =============================================================================

const (
	dateLayout = "2006-01-02"
	// Fixed width so text timestamps sort chronologically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func (r *rows) date(t time.Time) any {
	if r.d.TextTimes {
		return t.UTC().Format(dateLayout)
	}
	return billing.DateOf(t)
}

func (r *rows) timestamp(t time.Time) any {
	if r.d.TextTimes {
		return t.UTC().Format(timestampLayout)
	}
	return t.UTC()
}

// dbTime scans DATE, TIMESTAMP or TEXT columns into a UTC time.
type dbTime struct {
	Time time.Time
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("cannot scan %T into time", src)
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, dateLayout, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func buildingArg(id *billing.BuildingID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

func unitArg(id *billing.UnitID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return nullString(string(*id))
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
