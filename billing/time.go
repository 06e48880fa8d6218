package billing

import (
	"math"
	"time"
)

// =============================================================================
// CALENDAR DATES - Quotas are due on days, not instants
// =============================================================================

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return Date(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns floor((to - from) / 1 day). Negative when to is before from.
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// IssueDate is the day of the period on which quotas are issued.
func IssueDate(p Period, issueDay int) time.Time {
	return Date(p.Year, p.Month, issueDay)
}

// DueDate falls in the same month as the issue date when dueDay >= issueDay,
// and in the following month otherwise.
func DueDate(p Period, issueDay, dueDay int) time.Time {
	if dueDay < issueDay {
		next := p.Next()
		return Date(next.Year, next.Month, dueDay)
	}
	return Date(p.Year, p.Month, dueDay)
}
