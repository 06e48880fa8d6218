package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUOTA - One unit's obligation for one concept and one period
// =============================================================================

type QuotaStatus string

const (
	QuotaPending   QuotaStatus = "pending"
	QuotaPaid      QuotaStatus = "paid"
	QuotaCancelled QuotaStatus = "cancelled"
)

type Quota struct {
	ID             QuotaID
	UnitID         UnitID
	ConceptID      ConceptID
	PeriodYear     int
	PeriodMonth    time.Month
	BaseAmount     decimal.Decimal
	InterestAmount decimal.Decimal
	PaidAmount     decimal.Decimal
	Balance        decimal.Decimal
	Status         QuotaStatus
	IssueDate      time.Time
	DueDate        time.Time
	CurrencyID     string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (q Quota) Period() Period {
	return Period{Year: q.PeriodYear, Month: q.PeriodMonth}
}

// Owed is BaseAmount + InterestAmount.
func (q Quota) Owed() decimal.Decimal {
	return q.BaseAmount.Add(q.InterestAmount)
}

// CheckBalance verifies Balance == BaseAmount + InterestAmount - PaidAmount.
func (q Quota) CheckBalance() error {
	want := q.Owed().Sub(q.PaidAmount)
	if !q.Balance.Equal(want) {
		return fmt.Errorf("%w: quota %s balance %s, expected %s",
			ErrBalanceInvariant, q.ID, q.Balance.String(), want.String())
	}
	return nil
}

// =============================================================================
// CHARGE RUN - Record of one successful generation
// =============================================================================

// ChargeRun is unique per (ConceptID, PeriodYear, PeriodMonth). Its insert is
// the authoritative idempotency check for generation.
type ChargeRun struct {
	ID            string
	ConceptID     ConceptID
	PeriodYear    int
	PeriodMonth   time.Month
	QuotasCreated int
	TotalAmount   decimal.Decimal
	IssueDate     time.Time
	DueDate       time.Time
	CreatedBy     string
	CreatedAt     time.Time
}

// =============================================================================
// QUOTA ADJUSTMENT - Append-only audit of manual corrections
// =============================================================================

type AdjustmentType string

const (
	AdjustIncrease   AdjustmentType = "increase"
	AdjustDecrease   AdjustmentType = "decrease"
	AdjustCorrection AdjustmentType = "correction"
	AdjustWaiver     AdjustmentType = "waiver"
)

func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustIncrease, AdjustDecrease, AdjustCorrection, AdjustWaiver:
		return true
	}
	return false
}

// QuotaAdjustment is immutable once written.
type QuotaAdjustment struct {
	ID             string
	QuotaID        QuotaID
	PreviousAmount decimal.Decimal
	NewAmount      decimal.Decimal
	Type           AdjustmentType
	Reason         string
	CreatedBy      string
	CreatedAt      time.Time
}
