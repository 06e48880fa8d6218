package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/condo-ledger/billing"
)

func dueQuota(balance string) billing.Quota {
	return billing.Quota{
		ID:         "q-1",
		BaseAmount: dec(balance),
		Balance:    dec(balance),
		DueDate:    billing.Date(2025, time.March, 10),
	}
}

func day(d int) time.Time {
	return billing.Date(2025, time.March, d)
}

// =============================================================================
// LATE FEE
// =============================================================================

func TestLateFee_ZeroWithinGraceThenPositive(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{
		Type: billing.KindPercentage, Value: dec("5"), GraceDays: 3,
	}}
	q := dueQuota("200")

	for d := 1; d <= 13; d++ {
		assert.True(t, billing.LateFee(c, q, day(d)).IsZero(), "day %d is within grace", d)
	}
	fee := billing.LateFee(c, q, day(14))
	assert.True(t, fee.IsPositive())
	assert.Equal(t, "10.00", fee.StringFixed(2))
}

func TestLateFee_NoGraceChargesTheDayAfterDue(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{Type: billing.KindFixed, Value: dec("15")}}
	q := dueQuota("200")

	assert.True(t, billing.LateFee(c, q, day(10)).IsZero(), "due date itself is not overdue")
	assert.Equal(t, "15.00", billing.LateFee(c, q, day(11)).StringFixed(2))
	assert.Equal(t, "15.00", billing.LateFee(c, q, day(31)).StringFixed(2), "fixed fee is not prorated")
}

func TestLateFee_UsesRemainingBalance(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{Type: billing.KindPercentage, Value: dec("10")}}
	q := dueQuota("200")
	q.PaidAmount = dec("150")
	q.Balance = dec("50")

	assert.Equal(t, "5.00", billing.LateFee(c, q, day(20)).StringFixed(2))
}

func TestLateFee_PartialDayDoesNotCount(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{Type: billing.KindFixed, Value: dec("1")}}
	q := dueQuota("10")

	assert.True(t, billing.LateFee(c, q, day(10).Add(23*time.Hour)).IsZero())
	assert.False(t, billing.LateFee(c, q, day(11)).IsZero())
}

func TestLateFee_RoundsHalfUp(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{Type: billing.KindPercentage, Value: dec("2.5")}}
	q := dueQuota("33.33") // 0.83325

	assert.Equal(t, "0.83", billing.LateFee(c, q, day(15)).StringFixed(2))
}

func TestLateFee_NoneIsAlwaysZero(t *testing.T) {
	c := billing.PaymentConcept{LateFee: billing.LateFeeRule{Type: billing.KindNone}}
	assert.True(t, billing.LateFee(c, dueQuota("100"), day(31)).IsZero())
}

// =============================================================================
// EARLY DISCOUNT
// =============================================================================

func TestEarlyDiscount_Threshold(t *testing.T) {
	c := billing.PaymentConcept{EarlyDiscount: billing.EarlyDiscountRule{
		Type: billing.KindPercentage, Value: dec("10"), DaysBeforeDue: 5,
	}}
	q := dueQuota("200")

	assert.Equal(t, "20.00", billing.EarlyDiscount(c, q, day(5)).StringFixed(2), "exactly 5 days early")
	assert.Equal(t, "20.00", billing.EarlyDiscount(c, q, day(1)).StringFixed(2))
	assert.True(t, billing.EarlyDiscount(c, q, day(6)).IsZero(), "4 days early is too late")
}

func TestEarlyDiscount_NeverExceedsBalance(t *testing.T) {
	cases := []struct {
		name    string
		rule    billing.EarlyDiscountRule
		balance string
	}{
		{"fixed above balance", billing.EarlyDiscountRule{Type: billing.KindFixed, Value: dec("80")}, "50"},
		{"full percentage", billing.EarlyDiscountRule{Type: billing.KindPercentage, Value: dec("100")}, "50"},
		{"zero balance", billing.EarlyDiscountRule{Type: billing.KindFixed, Value: dec("5")}, "0"},
		{"negative balance", billing.EarlyDiscountRule{Type: billing.KindFixed, Value: dec("5")}, "-10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := billing.PaymentConcept{EarlyDiscount: tc.rule}
			q := dueQuota(tc.balance)

			got := billing.EarlyDiscount(c, q, day(1))
			assert.True(t, got.LessThanOrEqual(q.Balance) || got.IsZero(), "discount %s > balance %s", got, q.Balance)
			assert.False(t, got.IsNegative())
		})
	}

	c := billing.PaymentConcept{EarlyDiscount: billing.EarlyDiscountRule{Type: billing.KindFixed, Value: dec("80")}}
	assert.Equal(t, "50.00", billing.EarlyDiscount(c, dueQuota("50"), day(1)).StringFixed(2))
}

// =============================================================================
// QUOTE
// =============================================================================

func TestQuote_CombinesFeeAndDiscount(t *testing.T) {
	f := newFixture(t)
	f.unit("u-1", "", "100")
	concept := f.concept(billing.PaymentConcept{
		Name:             "Maintenance",
		IsRecurring:      true,
		RecurrencePeriod: billing.RecurrenceMonthly,
		IssueDay:         1,
		DueDay:           10,
		LateFee:          billing.LateFeeRule{Type: billing.KindFixed, Value: dec("12.50"), GraceDays: 2},
		EarlyDiscount:    billing.EarlyDiscountRule{Type: billing.KindPercentage, Value: dec("5"), DaysBeforeDue: 7},
	})
	f.condoWide(concept.ID, billing.FixedPerUnit, "100")
	_, err := f.engine.Generator.Generate(f.ctx, concept.ID, 2025, time.March, "admin")
	require.NoError(t, err)
	q := f.quotasByUnit(concept.ID, 2025, time.March)["u-1"]

	early, err := f.engine.Quotes.Quote(f.ctx, q.ID, day(2))
	require.NoError(t, err)
	assert.Equal(t, "5.00", early.EarlyDiscount.StringFixed(2))
	assert.True(t, early.LateFee.IsZero())
	assert.Equal(t, "95.00", early.AmountDue.StringFixed(2))

	late, err := f.engine.Quotes.Quote(f.ctx, q.ID, day(20))
	require.NoError(t, err)
	assert.Equal(t, "12.50", late.LateFee.StringFixed(2))
	assert.Equal(t, "112.50", late.AmountDue.StringFixed(2))

	_, err = f.engine.Quotes.Quote(f.ctx, "nope", day(2))
	assert.Equal(t, billing.CodeNotFound, billing.CodeOf(err))
}
