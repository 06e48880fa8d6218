package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENTS - Created by the external payment processor
// =============================================================================

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

type Payment struct {
	ID          PaymentID
	UnitID      UnitID
	Amount      decimal.Decimal
	CurrencyID  string
	Status      PaymentStatus
	PaymentDate time.Time
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentApplication allocates part of a payment to one quota. The creator
// guarantees the applied amounts of a quota never exceed what it owes.
type PaymentApplication struct {
	ID            ApplicationID
	PaymentID     PaymentID
	QuotaID       QuotaID
	AppliedAmount decimal.Decimal
	AppliedAt     time.Time
}
