/*
concept.go - Payment concept definitions and their validation

PURPOSE:
  A PaymentConcept is a billable definition scoped to a condominium
  (optionally narrowed to a building). It carries the scheduling rules used
  by the charge generator and the surcharge/discount rules used by the
  adjustment calculator.

VALIDATION RULES:
  - Name, condominium and currency are required
  - Recurring concepts need a recurrence period, an issue day and a due day
  - Issue and due days, when set, are within 1-28 (every month has them)
  - Late fee / early discount with type != none need a positive value;
    percentages cannot exceed 100; grace days and days-before-due >= 0

LIFECYCLE:
  Concepts are created active and deactivated once in use. They are never
  hard-deleted because quotas reference them.

SEE ALSO:
  - registry.go: Create / deactivate operations
  - calculator.go: Uses LateFeeRule and EarlyDiscountRule
*/
package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ConceptType string

const (
	ConceptOrdinary      ConceptType = "ordinary"
	ConceptExtraordinary ConceptType = "extraordinary"
	ConceptMaintenance   ConceptType = "maintenance"
	ConceptFine          ConceptType = "fine"
	ConceptReserveFund   ConceptType = "reserve_fund"
	ConceptOther         ConceptType = "other"
)

func (t ConceptType) Valid() bool {
	switch t {
	case ConceptOrdinary, ConceptExtraordinary, ConceptMaintenance, ConceptFine, ConceptReserveFund, ConceptOther:
		return true
	}
	return false
}

type RecurrencePeriod string

const (
	RecurrenceNone       RecurrencePeriod = ""
	RecurrenceMonthly    RecurrencePeriod = "monthly"
	RecurrenceBimonthly  RecurrencePeriod = "bimonthly"
	RecurrenceQuarterly  RecurrencePeriod = "quarterly"
	RecurrenceSemiannual RecurrencePeriod = "semiannual"
	RecurrenceAnnual     RecurrencePeriod = "annual"
)

func (r RecurrencePeriod) Valid() bool {
	switch r {
	case RecurrenceMonthly, RecurrenceBimonthly, RecurrenceQuarterly, RecurrenceSemiannual, RecurrenceAnnual:
		return true
	}
	return false
}

// AdjustmentKind is shared by late fees and early discounts.
type AdjustmentKind string

const (
	KindNone       AdjustmentKind = "none"
	KindPercentage AdjustmentKind = "percentage"
	KindFixed      AdjustmentKind = "fixed"
)

func (k AdjustmentKind) Valid() bool {
	return k == KindNone || k == KindPercentage || k == KindFixed
}

// LateFeeRule applies once a quota is more than GraceDays past due.
type LateFeeRule struct {
	Type      AdjustmentKind
	Value     decimal.Decimal
	GraceDays int
}

// EarlyDiscountRule applies when payment arrives at least DaysBeforeDue early.
type EarlyDiscountRule struct {
	Type          AdjustmentKind
	Value         decimal.Decimal
	DaysBeforeDue int
}

const (
	minScheduleDay = 1
	maxScheduleDay = 28

	// Used when a one-off concept leaves its schedule unset.
	defaultIssueDay = 1
	defaultDueDay   = 28
)

type PaymentConcept struct {
	ID            ConceptID
	CondominiumID CondominiumID
	BuildingID    *BuildingID
	Name          string
	Description   string
	Type          ConceptType
	CurrencyID    string

	IsRecurring      bool
	RecurrencePeriod RecurrencePeriod
	IssueDay         int // 0 = unset
	DueDay           int // 0 = unset

	LateFee       LateFeeRule
	EarlyDiscount EarlyDiscountRule

	IsActive  bool
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Schedule returns the issue and due day used for generation.
func (c PaymentConcept) Schedule() (issueDay, dueDay int) {
	issueDay, dueDay = c.IssueDay, c.DueDay
	if issueDay == 0 {
		issueDay = defaultIssueDay
	}
	if dueDay == 0 {
		dueDay = defaultDueDay
	}
	return issueDay, dueDay
}

// Validate checks every concept invariant and returns the first violation.
func (c PaymentConcept) Validate() *ValidationError {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if c.CondominiumID == "" {
		return &ValidationError{Field: "condominium_id", Message: "is required"}
	}
	if strings.TrimSpace(c.CurrencyID) == "" {
		return &ValidationError{Field: "currency_id", Message: "is required"}
	}
	if c.Type != "" && !c.Type.Valid() {
		return &ValidationError{Field: "concept_type", Message: "unknown concept type " + string(c.Type)}
	}

	if c.IsRecurring {
		if !c.RecurrencePeriod.Valid() {
			return &ValidationError{Field: "recurrence_period", Message: "is required for recurring concepts"}
		}
		if c.IssueDay == 0 {
			return &ValidationError{Field: "issue_day", Message: "is required for recurring concepts"}
		}
		if c.DueDay == 0 {
			return &ValidationError{Field: "due_day", Message: "is required for recurring concepts"}
		}
	} else if c.RecurrencePeriod != RecurrenceNone && !c.RecurrencePeriod.Valid() {
		return &ValidationError{Field: "recurrence_period", Message: "unknown recurrence period " + string(c.RecurrencePeriod)}
	}
	if err := validateDay("issue_day", c.IssueDay); err != nil {
		return err
	}
	if err := validateDay("due_day", c.DueDay); err != nil {
		return err
	}

	if err := validateRule("late_fee", c.LateFee.Type, c.LateFee.Value); err != nil {
		return err
	}
	if c.LateFee.GraceDays < 0 {
		return &ValidationError{Field: "late_fee.grace_days", Message: "cannot be negative"}
	}
	if err := validateRule("early_discount", c.EarlyDiscount.Type, c.EarlyDiscount.Value); err != nil {
		return err
	}
	if c.EarlyDiscount.DaysBeforeDue < 0 {
		return &ValidationError{Field: "early_discount.days_before_due", Message: "cannot be negative"}
	}
	return nil
}

func validateDay(field string, day int) *ValidationError {
	if day == 0 {
		return nil
	}
	if day < minScheduleDay || day > maxScheduleDay {
		return &ValidationError{Field: field, Message: "must be between 1 and 28"}
	}
	return nil
}

func validateRule(field string, kind AdjustmentKind, value decimal.Decimal) *ValidationError {
	if kind == "" {
		return nil
	}
	if !kind.Valid() {
		return &ValidationError{Field: field + ".type", Message: "unknown type " + string(kind)}
	}
	if kind == KindNone {
		return nil
	}
	if !value.IsPositive() {
		return &ValidationError{Field: field + ".value", Message: "must be positive when type is " + string(kind)}
	}
	if kind == KindPercentage && value.GreaterThan(hundred) {
		return &ValidationError{Field: field + ".value", Message: "percentage cannot exceed 100"}
	}
	return nil
}

// normalize fills zero-valued rule types with KindNone.
func (c *PaymentConcept) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.CurrencyID = strings.TrimSpace(c.CurrencyID)
	if c.Type == "" {
		c.Type = ConceptOrdinary
	}
	if c.LateFee.Type == "" {
		c.LateFee.Type = KindNone
	}
	if c.EarlyDiscount.Type == "" {
		c.EarlyDiscount.Type = KindNone
	}
}
