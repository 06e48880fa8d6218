/*
calculator.go - Late fees and early-payment discounts

PURPOSE:
  Pure functions that price a payment against a quota on a given date. They
  read the concept's rules and the quota's due date and remaining balance;
  nothing is persisted.

LATE FEE:
  daysOverdue = floor((paymentDate - dueDate) / 1 day)
  0 when the rule is none, daysOverdue <= 0 or daysOverdue <= graceDays.
  percentage => round2(balance * value / 100), fixed => value (not prorated).
  The fee is charged on the remaining balance, not the base amount.

EARLY DISCOUNT:
  daysBeforeDue = floor((dueDate - paymentDate) / 1 day)
  0 when the rule is none or daysBeforeDue < the rule's threshold.
  percentage => round2(balance * value / 100), fixed => value.
  Capped at the balance, so it never exceeds what is owed.

SEE ALSO:
  - concept.go: LateFeeRule, EarlyDiscountRule
*/
package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LateFee returns the surcharge for paying quota q on paymentDate.
func LateFee(c PaymentConcept, q Quota, paymentDate time.Time) decimal.Decimal {
	rule := c.LateFee
	if rule.Type == KindNone || rule.Type == "" {
		return decimal.Zero
	}
	daysOverdue := DaysBetween(q.DueDate, paymentDate)
	if daysOverdue <= 0 || daysOverdue <= rule.GraceDays {
		return decimal.Zero
	}
	switch rule.Type {
	case KindPercentage:
		return Percent(q.Balance, rule.Value)
	case KindFixed:
		return rule.Value
	}
	return decimal.Zero
}

// EarlyDiscount returns the discount for paying quota q on paymentDate.
func EarlyDiscount(c PaymentConcept, q Quota, paymentDate time.Time) decimal.Decimal {
	rule := c.EarlyDiscount
	if rule.Type == KindNone || rule.Type == "" {
		return decimal.Zero
	}
	daysBeforeDue := DaysBetween(paymentDate, q.DueDate)
	if daysBeforeDue < rule.DaysBeforeDue {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch rule.Type {
	case KindPercentage:
		discount = Percent(q.Balance, rule.Value)
	case KindFixed:
		discount = rule.Value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(q.Balance) {
		discount = q.Balance
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// =============================================================================
// QUOTES - Calculator applied to a stored quota
// =============================================================================

type Quoter struct {
	deps
}

// Quote is what a unit would pay for one quota on a given date.
type Quote struct {
	QuotaID       QuotaID
	PaymentDate   time.Time
	Balance       decimal.Decimal
	LateFee       decimal.Decimal
	EarlyDiscount decimal.Decimal
	AmountDue     decimal.Decimal
}

// Quote loads a quota and its concept and prices a payment on paymentDate.
func (qt *Quoter) Quote(ctx context.Context, quotaID QuotaID, paymentDate time.Time) (_ *Quote, err error) {
	const op = "quote"
	defer qt.observe(op, time.Now(), &err)

	q, err := qt.store.GetQuota(ctx, quotaID)
	if err != nil {
		return nil, internal(op, err)
	}
	if q == nil {
		return nil, notFound(op, "quota %s not found", quotaID)
	}
	c, err := qt.store.GetConcept(ctx, q.ConceptID)
	if err != nil {
		return nil, internal(op, err)
	}
	if c == nil {
		return nil, notFound(op, "concept %s not found", q.ConceptID)
	}

	fee := LateFee(*c, *q, paymentDate)
	discount := EarlyDiscount(*c, *q, paymentDate)
	return &Quote{
		QuotaID:       q.ID,
		PaymentDate:   paymentDate,
		Balance:       q.Balance,
		LateFee:       fee,
		EarlyDiscount: discount,
		AmountDue:     q.Balance.Add(fee).Sub(discount),
	}, nil
}
