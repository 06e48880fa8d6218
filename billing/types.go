/*
Package billing provides the condominium billing ledger engine.

PURPOSE:
  Turns a payment concept (a billable item such as "monthly maintenance fee")
  into per-unit obligations called quotas, distributes a total charge across
  units, prices late payments and early payments, records manual corrections
  and reverses payments while keeping quota balances consistent.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: Type-safe IDs so a unit ID never ends up where a quota ID belongs
  - Money: decimal.Decimal amounts and the engine-wide 2-decimal rounding rule
  - Period: A (year, month) billing period

INVARIANTS PROTECTED BY THIS PACKAGE:
  1. Exact distribution: per-unit amounts always sum to the pool, to the cent
  2. Idempotent generation: one charge run per (concept, year, month), ever
  3. All-or-nothing reversal: a refund either restores every quota or none
  4. Quota arithmetic: Balance == BaseAmount + InterestAmount - PaidAmount

USAGE:
  engine := billing.NewEngine(store, billing.WithLogger(log))
  result, err := engine.Generator.Generate(ctx, conceptID, 2025, time.March, "admin-1")
  if billing.CodeOf(err) == billing.CodeConflict {
      // already generated for March 2025
  }

SEE ALSO:
  - errors.go: Result codes and sentinel errors
  - store.go: Persistence interfaces
  - resolver.go: Assignment resolution and distribution rules
  - generator.go: Charge generation
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CondominiumID string
type BuildingID string
type UnitID string
type ConceptID string
type AssignmentID string
type QuotaID string
type PaymentID string
type ApplicationID string

// =============================================================================
// MONEY
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// Round2 computes floor(d×100 + 0.5)/100: half-up toward +∞, so -0.125
// becomes -0.12. Every amount this engine persists goes through it.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Add(half).Floor().Shift(-2)
}

// Percent returns round2(base × pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// PERIOD
// =============================================================================

// Period is a billing month.
type Period struct {
	Year  int
	Month time.Month
}

func NewPeriod(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("month %d out of range 1-12", int(p.Month))
	}
	if p.Year < 2000 || p.Year > 9999 {
		return fmt.Errorf("year %d out of range", p.Year)
	}
	return nil
}

// Next returns the following month, rolling December into January.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}
