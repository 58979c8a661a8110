package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
)

// dashboardListSize caps the upcoming bills and notifications shown.
const dashboardListSize = 5

// MonthBar is a month bucket scaled against the largest month in its series.
type MonthBar struct {
	billing.MonthBucket
	Percent float64
}

// TypeShare is a utility type bucket with its share of all billed amounts.
type TypeShare struct {
	billing.CategoryBucket
	Percent float64
}

func monthBars(series []billing.MonthBucket) []MonthBar {
	peak := decimal.Zero
	for _, m := range series {
		if m.Amount.GreaterThan(peak) {
			peak = m.Amount
		}
	}
	bars := make([]MonthBar, 0, len(series))
	for _, m := range series {
		bars = append(bars, MonthBar{MonthBucket: m, Percent: billing.Share(m.Amount, peak)})
	}
	return bars
}

func typeShares(buckets []billing.CategoryBucket) []TypeShare {
	total := billing.TotalBilled(buckets)
	shares := make([]TypeShare, 0, len(buckets))
	for _, b := range buckets {
		shares = append(shares, TypeShare{CategoryBucket: b, Percent: billing.Share(b.TotalAmount, total)})
	}
	return shares
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Username      string
	Summary       billing.Summary
	Series        []MonthBar
	ByType        []TypeShare
	Upcoming      []billing.BillView
	Notifications []models.Notification
	Unread        int
}

// Dashboard renders the headline figures for the signed-in user.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "Dashboard", err)
		return
	}

	upcoming := make([]billing.BillView, 0, dashboardListSize)
	for _, b := range v.Bills {
		if b.DisplayStatus == models.DisplayPaid {
			continue
		}
		upcoming = append(upcoming, b)
		if len(upcoming) == dashboardListSize {
			break
		}
	}

	notifications := v.Notifications
	if len(notifications) > dashboardListSize {
		notifications = notifications[:dashboardListSize]
	}

	h.render(w, r, "dashboard.html", DashboardViewModel{
		Username:      GetUserFromContext(r).Username,
		Summary:       v.Summary,
		Series:        monthBars(v.Series),
		ByType:        typeShares(v.ByType),
		Upcoming:      upcoming,
		Notifications: notifications,
		Unread:        v.Unread,
	})
}
