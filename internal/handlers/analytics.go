package handlers

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
)

// windowChoices are the analytics window lengths offered in the UI.
var windowChoices = []int{3, 6, 12, 24}

// MethodShare is a payment method bucket with its share of the month.
type MethodShare struct {
	billing.MethodBucket
	Percent float64
}

// AnalyticsViewModel is the data passed to the analytics template.
type AnalyticsViewModel struct {
	Analytics billing.Analytics
	Window    int
	Windows   []int
	Bars      []MonthBar
	ByType    []TypeShare

	// Month drill-down with previous/next navigation.
	Year           int
	Month          int
	MonthName      string
	MonthTotal     decimal.Decimal
	MonthPayments  []models.Payment
	MonthMethods   []MethodShare
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

// Analytics renders trends over a window of months (?months=, default 12)
// and the payments of one month (?year=&month=, default the current month).
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "Analytics", err)
		return
	}

	q := r.URL.Query()
	window := billing.AnalyticsMonths
	if n, err := strconv.Atoi(q.Get("months")); err == nil && slices.Contains(windowChoices, n) {
		window = n
	}

	now := h.now()
	year, month := now.Year(), int(now.Month())
	if y, err := strconv.Atoi(q.Get("year")); err == nil {
		year = y
	}
	if m, err := strconv.Atoi(q.Get("month")); err == nil && m >= 1 && m <= 12 {
		month = m
	}

	loc := now.Location()
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	monthPayments := billing.FilterPayments(v.Payments, billing.PaymentFilter{
		Month: first.Format(billing.MonthFilterLayout),
	}, loc)
	monthTotal := billing.TotalPaid(monthPayments)

	methods := billing.BreakdownByMethod(monthPayments)
	methodShares := make([]MethodShare, 0, len(methods))
	for _, m := range methods {
		methodShares = append(methodShares, MethodShare{MethodBucket: m, Percent: billing.Share(m.TotalAmount, monthTotal)})
	}

	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)
	a := v.AnalyticsFor(window)

	h.render(w, r, "analytics.html", AnalyticsViewModel{
		Analytics:      a,
		Window:         window,
		Windows:        windowChoices,
		Bars:           monthBars(a.Months),
		ByType:         typeShares(a.ByType),
		Year:           year,
		Month:          month,
		MonthName:      first.Month().String(),
		MonthTotal:     monthTotal,
		MonthPayments:  monthPayments,
		MonthMethods:   methodShares,
		PrevYear:       prev.Year(),
		PrevMonth:      int(prev.Month()),
		NextYear:       next.Year(),
		NextMonth:      int(next.Month()),
		IsCurrentMonth: year == now.Year() && month == int(now.Month()),
	})
}
