package billing

import (
	"time"

	"utility-tracker/internal/models"
)

func monthsIn(period models.RecurringPeriod) int {
	switch period {
	case models.PeriodMonthly:
		return 1
	case models.PeriodQuarterly:
		return 3
	case models.PeriodAnnually:
		return 12
	}
	return 0
}

// NextDueDate advances due by one recurring period. The day of month is
// clamped to the last day of the target month, so Jan 31 monthly becomes
// Feb 28 (or 29). It returns false for an unknown period.
func NextDueDate(due time.Time, period models.RecurringPeriod) (time.Time, bool) {
	n := monthsIn(period)
	if n == 0 {
		return time.Time{}, false
	}
	y, m, d := due.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, due.Location())
	lastDay := time.Date(target.Year(), target.Month()+1, 0, 0, 0, 0, 0, due.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, due.Location()), true
}

// NextOccurrence builds the pending bill that follows a paid recurring bill.
// It returns false when the bill does not recur.
func NextOccurrence(b models.Bill) (models.Bill, bool) {
	if !b.IsRecurring {
		return models.Bill{}, false
	}
	next, ok := NextDueDate(b.DueDate, b.RecurringPeriod)
	if !ok {
		return models.Bill{}, false
	}
	return models.Bill{
		UserID:          b.UserID,
		Title:           b.Title,
		UtilityType:     b.UtilityType,
		Amount:          b.Amount,
		DueDate:         next,
		IsRecurring:     true,
		RecurringPeriod: b.RecurringPeriod,
		Status:          models.StatusPending,
		Notes:           b.Notes,
	}, true
}
