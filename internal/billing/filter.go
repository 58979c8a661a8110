package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/models"
)

// MonthFilterLayout is the format of the payments month filter.
const MonthFilterLayout = "2006-01"

// BillFilter selects bills for the bills list. Empty fields match everything.
type BillFilter struct {
	Search string
	Status models.DisplayStatus
	Type   models.UtilityType
}

// FilterBills keeps the views that match f. Search is a case-insensitive
// substring match on title or utility type. Status matches the display
// status, so "overdue" is a usable filter even though it is never stored.
func FilterBills(views []BillView, f BillFilter) []BillView {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]BillView, 0, len(views))
	for _, v := range views {
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(string(v.UtilityType)), search) {
			continue
		}
		if f.Status != "" && v.DisplayStatus != f.Status {
			continue
		}
		if f.Type != "" && v.UtilityType != f.Type {
			continue
		}
		out = append(out, v)
	}
	return out
}

// PaymentFilter selects payments for the payments list.
type PaymentFilter struct {
	Search string
	Method models.PaymentMethod
	Month  string // yyyy-MM
}

// FilterPayments keeps the payments that match f. Search matches the linked
// bill title or the payment notes. Month compares the payment date as seen in
// loc.
func FilterPayments(payments []models.Payment, f PaymentFilter, loc *time.Location) []models.Payment {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.BillTitle), search) &&
			!strings.Contains(strings.ToLower(p.Notes), search) {
			continue
		}
		if f.Method != "" && p.PaymentMethod != f.Method {
			continue
		}
		if f.Month != "" && p.PaymentDate.In(loc).Format(MonthFilterLayout) != f.Month {
			continue
		}
		out = append(out, p)
	}
	return out
}

// PaymentMonths lists the distinct yyyy-MM months that have payments, newest first.
func PaymentMonths(payments []models.Payment, loc *time.Location) []string {
	seen := make(map[string]bool)
	months := make([]string, 0)
	for _, p := range payments {
		m := p.PaymentDate.In(loc).Format(MonthFilterLayout)
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}

// TotalPaid sums payment amounts.
func TotalPaid(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
