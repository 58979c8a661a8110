package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
)

// PaymentsViewModel is the data passed to the payments list template.
type PaymentsViewModel struct {
	Payments []models.Payment
	Filter   billing.PaymentFilter
	Total    decimal.Decimal
	Methods  []models.PaymentMethod
	Months   []string
}

// PaymentFormViewModel is the data passed to the payment create/edit template.
type PaymentFormViewModel struct {
	Payment *models.Payment
	IsEdit  bool
	Error   string
	Bills   []billing.BillView
	Methods []models.PaymentMethod
}

// ListPayments renders payments newest first with search, method and month filters.
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "ListPayments", err)
		return
	}

	q := r.URL.Query()
	filter := billing.PaymentFilter{
		Search: strings.TrimSpace(q.Get("q")),
		Method: models.PaymentMethod(q.Get("method")),
		Month:  q.Get("month"),
	}
	loc := h.now().Location()
	payments := billing.FilterPayments(v.Payments, filter, loc)
	for i := range payments {
		payments[i].PaymentDate = payments[i].PaymentDate.In(loc)
	}

	h.render(w, r, "payments.html", PaymentsViewModel{
		Payments: payments,
		Filter:   filter,
		Total:    billing.TotalPaid(payments),
		Methods:  models.PaymentMethods,
		Months:   billing.PaymentMonths(v.Payments, loc),
	})
}

// NewPaymentForm renders the form to record a payment, optionally prefilled
// from the bill named by ?bill=.
func (h *Handlers) NewPaymentForm(w http.ResponseWriter, r *http.Request) {
	p := &models.Payment{PaymentDate: h.now(), PaymentMethod: models.MethodCard}
	if id := r.URL.Query().Get("bill"); id != "" {
		if bill, err := h.db.GetBill(r.Context(), GetUserFromContext(r).ID, id); err == nil {
			p.BillID = bill.ID
			p.Amount = bill.Amount
		}
	}
	h.renderPaymentForm(w, r, p, false, "")
}

// EditPaymentForm renders the form to edit an existing payment.
func (h *Handlers) EditPaymentForm(w http.ResponseWriter, r *http.Request) {
	p, err := h.db.GetPayment(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "EditPaymentForm", err)
		return
	}
	p.PaymentDate = p.PaymentDate.In(h.now().Location())
	h.renderPaymentForm(w, r, p, true, "")
}

func (h *Handlers) renderPaymentForm(w http.ResponseWriter, r *http.Request, p *models.Payment, isEdit bool, msg string) {
	v, err := h.overview(r)
	if err != nil {
		writeError(w, r, "PaymentForm", err)
		return
	}
	h.render(w, r, "payment_form.html", PaymentFormViewModel{
		Payment: p,
		IsEdit:  isEdit,
		Error:   msg,
		Bills:   v.Bills,
		Methods: models.PaymentMethods,
	})
}

// CreatePayment records a new payment.
func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	p, err := parsePaymentForm(r, h.now().Location())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.db.CreatePayment(r.Context(), GetUserFromContext(r).ID, p); err != nil {
		if models.IsValidationError(err) {
			h.renderPaymentForm(w, r, p, false, err.Error())
			return
		}
		writeError(w, r, "CreatePayment", err)
		return
	}
	hxLocation(w, "/payments")
}

// UpdatePayment replaces the fields of an existing payment.
func (h *Handlers) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	p, err := parsePaymentForm(r, h.now().Location())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")
	if err := h.db.UpdatePayment(r.Context(), GetUserFromContext(r).ID, id, p); err != nil {
		if models.IsValidationError(err) {
			p.ID = id
			h.renderPaymentForm(w, r, p, true, err.Error())
			return
		}
		writeError(w, r, "UpdatePayment", err)
		return
	}
	hxLocation(w, "/payments")
}

// DeletePayment removes a payment.
func (h *Handlers) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeletePayment(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, "DeletePayment", err)
		return
	}
	hxLocation(w, "/payments")
}

// parsePaymentForm reads a payment. The date is midnight in loc so it lands in
// the same calendar month the user picked.
func parsePaymentForm(r *http.Request, loc *time.Location) (*models.Payment, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		return nil, models.ErrInvalidAmount
	}
	date, err := time.ParseInLocation(models.DateLayout, r.FormValue("payment_date"), loc)
	if err != nil {
		return nil, models.ErrMissingPaymentDate
	}
	return &models.Payment{
		BillID:        r.FormValue("bill_id"),
		Amount:        amount,
		PaymentDate:   date,
		PaymentMethod: models.PaymentMethod(r.FormValue("payment_method")),
		Notes:         strings.TrimSpace(r.FormValue("notes")),
	}, nil
}
