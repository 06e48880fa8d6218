/*
store.go - Persistence interface for the billing engine

PURPOSE:
  Defines the boundary between the engine and the data-access layer. The
  engine never issues SQL; it talks to a Store. Implementations exist for
  memory (tests), SQLite and PostgreSQL.

KEY INTERFACES:
  Store:   Row-level reads and writes for concepts, assignments, units,
           quotas, adjustments, payments and payment applications
  TxStore: Store + WithTx for atomic multi-row writes

MISSING ROWS:
  Get* methods return (nil, nil) when the row does not exist.
  Update and Delete methods return ErrNotFound when nothing matched.

UNIQUENESS CONTRACT:
  Implementations MUST enforce, at the storage level:
  - (concept, year, month) on charge runs    -> ErrPeriodAlreadyGenerated
  - (concept, unit, year, month) on quotas   -> ErrPeriodAlreadyGenerated
  - (concept, scope, scope identity)         -> ErrDuplicateAssignment
  The generator's pre-read check is only a fast path; concurrent callers
  are stopped by these constraints.

APPEND-ONLY:
  Quota adjustments have no update or delete method.

ATOMICITY:
  WithTx runs fn inside one transaction. If fn returns an error nothing fn
  wrote is visible afterwards.

IMPLEMENTATIONS:
  - billing/store/memory.go: In-memory, snapshot rollback
  - store/sqlstore:          database/sql, shared by the dialects below
  - store/sqlite:            SQLite (mattn/go-sqlite3)
  - store/postgres:          PostgreSQL (pgx stdlib)
*/
package billing

import "context"

// Store handles persistence of billing records.
type Store interface {
	// Concepts
	SaveConcept(ctx context.Context, c PaymentConcept) error
	GetConcept(ctx context.Context, id ConceptID) (*PaymentConcept, error)
	ListConcepts(ctx context.Context, condominiumID CondominiumID) ([]PaymentConcept, error)

	// Assignments. InsertAssignment returns ErrDuplicateAssignment on a
	// repeated scope identity.
	InsertAssignment(ctx context.Context, a Assignment) error
	ListAssignments(ctx context.Context, conceptID ConceptID) ([]Assignment, error)
	DeleteAssignment(ctx context.Context, id AssignmentID) error

	// Units, ordered by code then ID. That order is the distribution
	// iteration order, so it decides which unit absorbs the remainder.
	SaveUnit(ctx context.Context, u Unit) error
	ListUnits(ctx context.Context, condominiumID CondominiumID) ([]Unit, error)

	// Charge runs and quotas
	QuotasExist(ctx context.Context, conceptID ConceptID, p Period) (bool, error)
	InsertChargeRun(ctx context.Context, run ChargeRun) error
	GetChargeRun(ctx context.Context, conceptID ConceptID, p Period) (*ChargeRun, error)
	InsertQuotas(ctx context.Context, quotas []Quota) error
	GetQuota(ctx context.Context, id QuotaID) (*Quota, error)
	UpdateQuota(ctx context.Context, q Quota) error
	ListQuotas(ctx context.Context, conceptID ConceptID, p Period) ([]Quota, error)

	// Adjustments (append-only)
	AppendAdjustment(ctx context.Context, adj QuotaAdjustment) error
	ListAdjustments(ctx context.Context, quotaID QuotaID) ([]QuotaAdjustment, error)

	// Payments and applications
	SavePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	SaveApplication(ctx context.Context, app PaymentApplication) error
	ListApplications(ctx context.Context, paymentID PaymentID) ([]PaymentApplication, error)
	DeleteApplication(ctx context.Context, id ApplicationID) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
