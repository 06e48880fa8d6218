package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/condo-ledger/billing"
)

func TestDueDate_SameOrNextMonth(t *testing.T) {
	tests := []struct {
		name     string
		period   billing.Period
		issueDay int
		dueDay   int
		want     time.Time
	}{
		{"due after issue", billing.NewPeriod(2025, time.March), 1, 15, billing.Date(2025, time.March, 15)},
		{"due equals issue", billing.NewPeriod(2025, time.March), 10, 10, billing.Date(2025, time.March, 10)},
		{"due before issue", billing.NewPeriod(2025, time.March), 20, 5, billing.Date(2025, time.April, 5)},
		{"december rollover", billing.NewPeriod(2025, time.December), 28, 1, billing.Date(2026, time.January, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issue := billing.IssueDate(tc.period, tc.issueDay)
			due := billing.DueDate(tc.period, tc.issueDay, tc.dueDay)

			assert.Equal(t, tc.want, due)
			assert.Equal(t, tc.period.Month, issue.Month())
			assert.False(t, due.Before(issue))
		})
	}
}

func TestPeriod(t *testing.T) {
	assert.Equal(t, billing.NewPeriod(2026, time.January), billing.NewPeriod(2025, time.December).Next())
	assert.Equal(t, "2025-03", billing.NewPeriod(2025, time.March).String())
	assert.NoError(t, billing.NewPeriod(2000, time.January).Validate())
	assert.Error(t, billing.NewPeriod(2025, 13).Validate())
	assert.Error(t, billing.NewPeriod(10000, time.January).Validate())
}

func TestDaysBetween_Floors(t *testing.T) {
	from := billing.Date(2025, time.March, 10)

	assert.Equal(t, 0, billing.DaysBetween(from, from.Add(23*time.Hour)))
	assert.Equal(t, 1, billing.DaysBetween(from, from.Add(24*time.Hour)))
	assert.Equal(t, -1, billing.DaysBetween(from, from.Add(-time.Hour)))
}

func TestRound2_HalfUp(t *testing.T) {
	assert.Equal(t, "0.13", billing.Round2(dec("0.125")).StringFixed(2))
	assert.Equal(t, "-0.12", billing.Round2(dec("-0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", billing.Round2(dec("-0.126")).StringFixed(2))
	assert.Equal(t, "1.01", billing.Round2(dec("1.005")).StringFixed(2))
	assert.Equal(t, "-1.00", billing.Round2(dec("-1.005")).StringFixed(2))
	assert.Equal(t, "33.33", billing.Percent(dec("100"), dec("33.333")).StringFixed(2))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, billing.Code(""), billing.CodeOf(nil))
	assert.Equal(t, billing.CodeInternal, billing.CodeOf(assert.AnError))
	assert.True(t, billing.IsClientError(&billing.Error{Code: billing.CodeConflict}))
	assert.False(t, billing.IsClientError(&billing.Error{Code: billing.CodeInternal}))
}
