package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
)

// BillsViewModel is the data passed to the bills list template.
type BillsViewModel struct {
	Bills        []billing.BillView
	Filter       billing.BillFilter
	Total        decimal.Decimal
	UtilityTypes []models.UtilityType
	Statuses     []models.DisplayStatus
}

// BillFormViewModel is the data passed to the bill create/edit template.
type BillFormViewModel struct {
	Bill         *models.Bill
	IsEdit       bool
	Error        string
	UtilityTypes []models.UtilityType
	Periods      []models.RecurringPeriod
}

var displayStatuses = []models.DisplayStatus{models.DisplayPending, models.DisplayOverdue, models.DisplayPaid}

func billFilterFromQuery(r *http.Request) billing.BillFilter {
	q := r.URL.Query()
	return billing.BillFilter{
		Search: strings.TrimSpace(q.Get("q")),
		Status: models.DisplayStatus(q.Get("status")),
		Type:   models.UtilityType(q.Get("type")),
	}
}

// ListBills renders the bills list with search, status and type filters.
func (h *Handlers) ListBills(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "ListBills", err)
		return
	}

	filter := billFilterFromQuery(r)
	bills := billing.FilterBills(v.Bills, filter)
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.Amount)
	}

	h.render(w, r, "bills.html", BillsViewModel{
		Bills:        bills,
		Filter:       filter,
		Total:        total,
		UtilityTypes: models.UtilityTypes,
		Statuses:     displayStatuses,
	})
}

// NewBillForm renders the form to create a bill.
func (h *Handlers) NewBillForm(w http.ResponseWriter, r *http.Request) {
	h.renderBillForm(w, r, &models.Bill{DueDate: h.now()}, false, "")
}

// EditBillForm renders the form to edit an existing bill.
func (h *Handlers) EditBillForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	bill, err := h.db.GetBill(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "EditBillForm", err)
		return
	}
	h.renderBillForm(w, r, bill, true, "")
}

// renderBillForm re-renders with status 200 on validation errors so HTMX
// swaps the form back in with the message.
func (h *Handlers) renderBillForm(w http.ResponseWriter, r *http.Request, bill *models.Bill, isEdit bool, msg string) {
	h.render(w, r, "bill_form.html", BillFormViewModel{
		Bill:         bill,
		IsEdit:       isEdit,
		Error:        msg,
		UtilityTypes: models.UtilityTypes,
		Periods:      models.RecurringPeriods,
	})
}

// CreateBill handles the creation of a new bill.
func (h *Handlers) CreateBill(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	patch, err := parseBillForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bill := &models.Bill{Status: models.StatusPending}
	patch.Apply(bill)
	if err := h.db.CreateBill(r.Context(), user.ID, bill); err != nil {
		if models.IsValidationError(err) {
			h.renderBillForm(w, r, bill, false, err.Error())
			return
		}
		writeError(w, r, "CreateBill", err)
		return
	}
	hxLocation(w, "/bills")
}

// UpdateBill handles the update of an existing bill.
func (h *Handlers) UpdateBill(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	patch, err := parseBillForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.PathValue("id")
	updated, next, err := h.db.UpdateBill(r.Context(), user.ID, id, patch)
	if err != nil {
		if models.IsValidationError(err) {
			bill := &models.Bill{ID: id}
			patch.Apply(bill)
			h.renderBillForm(w, r, bill, true, err.Error())
			return
		}
		writeError(w, r, "UpdateBill", err)
		return
	}
	logNextOccurrence(r, updated, next)
	hxLocation(w, "/bills")
}

// MarkBillPaid marks a bill paid from the list view.
func (h *Handlers) MarkBillPaid(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	updated, next, err := h.db.MarkBillPaid(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "MarkBillPaid", err)
		return
	}
	logNextOccurrence(r, updated, next)
	hxLocation(w, "/bills")
}

// DeleteBill removes a bill. Its payments are kept.
func (h *Handlers) DeleteBill(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := h.db.DeleteBill(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeError(w, r, "DeleteBill", err)
		return
	}
	hxLocation(w, "/bills")
}

func logNextOccurrence(r *http.Request, paid, next *models.Bill) {
	if next == nil {
		return
	}
	slog.InfoContext(r.Context(), "Scheduled next occurrence",
		"bill_id", paid.ID,
		"next_bill_id", next.ID,
		"due_date", next.DueDate.Format(models.DateLayout))
}

// parseBillForm reads every bill field from the form. Unchecked recurrence
// clears the period; an empty status leaves the stored one unchanged.
func parseBillForm(r *http.Request) (models.BillPatch, error) {
	var p models.BillPatch
	if err := r.ParseForm(); err != nil {
		return p, err
	}

	title := strings.TrimSpace(r.FormValue("title"))
	p.Title = &title

	typ := models.UtilityType(r.FormValue("utility_type"))
	p.UtilityType = &typ

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		return p, models.ErrInvalidAmount
	}
	p.Amount = &amount

	due, err := time.Parse(models.DateLayout, r.FormValue("due_date"))
	if err != nil {
		return p, models.ErrMissingDueDate
	}
	p.DueDate = &due

	recurring := r.FormValue("is_recurring") != ""
	p.IsRecurring = &recurring
	if recurring {
		period := models.RecurringPeriod(r.FormValue("recurring_period"))
		p.RecurringPeriod = &period
	}

	if s := r.FormValue("status"); s != "" {
		status := models.BillStatus(s)
		p.Status = &status
	}

	notes := strings.TrimSpace(r.FormValue("notes"))
	p.Notes = &notes
	return p, nil
}
