package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/models"
)

// DashboardMonths is the length of the dashboard's payment series.
const DashboardMonths = 6

// AnalyticsMonths is the default length of the analytics window.
const AnalyticsMonths = 12

// Summary holds the dashboard headline figures.
type Summary struct {
	OverdueCount  int             `json:"overdue_count"`
	UpcomingCount int             `json:"upcoming_count"`
	PendingCount  int             `json:"pending_count"`
	TotalPending  decimal.Decimal `json:"total_pending"`
	PaidThisMonth decimal.Decimal `json:"paid_this_month"`
}

// Summarize computes dashboard figures. Upcoming counts unpaid bills due
// between today and a week from today inclusive. Pending totals include
// overdue bills since both are unpaid.
func Summarize(bills []models.Bill, payments []models.Payment, now time.Time) Summary {
	s := Summary{TotalPending: decimal.Zero, PaidThisMonth: decimal.Zero}
	for _, b := range bills {
		if b.Status == models.StatusPaid {
			continue
		}
		s.PendingCount++
		s.TotalPending = s.TotalPending.Add(b.Amount)
		days := DaysUntilDue(b.DueDate, now)
		switch {
		case days < 0:
			s.OverdueCount++
		case days <= reminderDays:
			s.UpcomingCount++
		}
	}
	s.PaidThisMonth = sumInMonth(payments, now.Year(), now.Month(), now.Location())
	return s
}

func sumInMonth(payments []models.Payment, year int, month time.Month, loc *time.Location) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		d := p.PaymentDate.In(loc)
		if d.Year() == year && d.Month() == month {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// Analytics holds the figures shown on the analytics page.
type Analytics struct {
	Months            []MonthBucket    `json:"months"`
	ByType            []CategoryBucket `json:"by_type"`
	ByMethod          []MethodBucket   `json:"by_method"`
	CurrentMonthTotal decimal.Decimal  `json:"current_month_total"`
	LastMonthTotal    decimal.Decimal  `json:"last_month_total"`
	MonthlyChange     float64          `json:"monthly_change_pct"`
	AverageMonthly    decimal.Decimal  `json:"average_monthly"`
	TotalPaid         decimal.Decimal  `json:"total_paid"`
	PaymentCount      int              `json:"payment_count"`
	TotalPending      decimal.Decimal  `json:"total_pending"`
	PendingCount      int              `json:"pending_count"`
	HighestMonth      *MonthBucket     `json:"highest_month,omitempty"`
}

// Analyze computes analytics over a window of monthCount trailing months.
// MonthlyChange is zero when last month had no payments.
func Analyze(bills []models.Bill, payments []models.Payment, monthCount int, now time.Time) Analytics {
	a := Analytics{
		Months:       MonthlySeries(payments, monthCount, now),
		ByType:       BreakdownByType(bills),
		ByMethod:     BreakdownByMethod(payments),
		TotalPaid:    decimal.Zero,
		TotalPending: decimal.Zero,
	}

	loc := now.Location()
	last := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, loc)
	a.CurrentMonthTotal = sumInMonth(payments, now.Year(), now.Month(), loc)
	a.LastMonthTotal = sumInMonth(payments, last.Year(), last.Month(), loc)
	if a.LastMonthTotal.IsPositive() {
		f, _ := a.CurrentMonthTotal.Sub(a.LastMonthTotal).Div(a.LastMonthTotal).Mul(decimal.NewFromInt(100)).Float64()
		a.MonthlyChange = f
	}

	windowTotal := decimal.Zero
	for i, m := range a.Months {
		windowTotal = windowTotal.Add(m.Amount)
		if m.Count > 0 && (a.HighestMonth == nil || m.Amount.GreaterThan(a.HighestMonth.Amount)) {
			a.HighestMonth = &a.Months[i]
		}
	}
	a.AverageMonthly = decimal.Zero
	if len(a.Months) > 0 {
		a.AverageMonthly = windowTotal.Div(decimal.NewFromInt(int64(len(a.Months)))).Round(2)
	}

	for _, p := range payments {
		a.TotalPaid = a.TotalPaid.Add(p.Amount)
		a.PaymentCount++
	}
	for _, b := range bills {
		if b.Status != models.StatusPaid {
			a.TotalPending = a.TotalPending.Add(b.Amount)
			a.PendingCount++
		}
	}
	return a
}
