// Package billing holds the pure derivations over a snapshot of bills and
// payments: display status, notifications, and aggregate views. Nothing here
// touches storage or returns errors.
package billing

import (
	"time"

	"utility-tracker/internal/models"
)

// Day truncates t to its calendar date, keeping the date as seen in t's own
// location but expressed in UTC so that differences are whole days.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntilDue returns the whole number of calendar days from now's date to
// the bill's due date. Negative means the due date has passed.
func DaysUntilDue(due, now time.Time) int {
	return int(Day(due).Sub(Day(now)).Hours() / 24)
}

// ClassifyStatus derives the display status of a bill. A paid bill is always
// paid; otherwise it is overdue once its due date is strictly before today.
func ClassifyStatus(b models.Bill, now time.Time) models.DisplayStatus {
	if b.Status == models.StatusPaid {
		return models.DisplayPaid
	}
	if DaysUntilDue(b.DueDate, now) < 0 {
		return models.DisplayOverdue
	}
	return models.DisplayPending
}

// BillView pairs a bill with its derived display status and days until due.
type BillView struct {
	models.Bill
	DisplayStatus models.DisplayStatus `json:"display_status"`
	DaysUntilDue  int                  `json:"days_until_due"`
}

// Classify returns a view of every bill, preserving input order.
func Classify(bills []models.Bill, now time.Time) []BillView {
	views := make([]BillView, 0, len(bills))
	for _, b := range bills {
		views = append(views, BillView{
			Bill:          b,
			DisplayStatus: ClassifyStatus(b, now),
			DaysUntilDue:  DaysUntilDue(b.DueDate, now),
		})
	}
	return views
}
