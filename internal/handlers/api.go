package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"utility-tracker/internal/auth"
	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
	"utility-tracker/internal/storage"
)

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{"not found"})
	case models.IsValidationError(err):
		writeJSON(w, http.StatusBadRequest, apiError{err.Error()})
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, apiError{err.Error()})
	default:
		slog.ErrorContext(r.Context(), "API request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, apiError{"internal server error"})
	}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken exchanges a username and password for a bearer token.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeJSON(w, http.StatusNotFound, apiError{"API disabled"})
		return
	}
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{"invalid JSON body"})
		return
	}
	user, err := h.authn.Authenticate(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	token, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// BearerMiddleware authenticates API requests with an Authorization: Bearer token.
func (h *Handlers) BearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.tokens == nil {
			writeJSON(w, http.StatusNotFound, apiError{"API disabled"})
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeAPIError(w, r, auth.ErrMissingToken)
			return
		}
		claims, err := h.tokens.Validate(strings.TrimSpace(raw))
		if err != nil {
			writeAPIError(w, r, err)
			return
		}
		user, err := h.db.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			writeAPIError(w, r, auth.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, withUser(r, user))
	})
}

// billRequest is the JSON body for creating or patching a bill. Dates are yyyy-MM-dd.
type billRequest struct {
	Title           *string                 `json:"title"`
	UtilityType     *models.UtilityType     `json:"utility_type"`
	Amount          *decimal.Decimal        `json:"amount"`
	DueDate         *string                 `json:"due_date"`
	IsRecurring     *bool                   `json:"is_recurring"`
	RecurringPeriod *models.RecurringPeriod `json:"recurring_period"`
	Status          *models.BillStatus      `json:"status"`
	Notes           *string                 `json:"notes"`
}

func (req billRequest) patch() (models.BillPatch, error) {
	p := models.BillPatch{
		Title:           req.Title,
		UtilityType:     req.UtilityType,
		Amount:          req.Amount,
		IsRecurring:     req.IsRecurring,
		RecurringPeriod: req.RecurringPeriod,
		Status:          req.Status,
		Notes:           req.Notes,
	}
	if req.DueDate != nil {
		due, err := time.Parse(models.DateLayout, *req.DueDate)
		if err != nil {
			return p, models.ErrMissingDueDate
		}
		p.DueDate = &due
	}
	return p, nil
}

func decodeBillRequest(r *http.Request) (models.BillPatch, error) {
	var req billRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.BillPatch{}, err
	}
	return req.patch()
}

// APIListBills returns bills with their display status, filtered like the UI.
func (h *Handlers) APIListBills(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billing.FilterBills(v.Bills, billFilterFromQuery(r)))
}

// APIGetBill returns one bill with its display status.
func (h *Handlers) APIGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := h.db.GetBill(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billing.Classify([]models.Bill{*bill}, h.now())[0])
}

// APICreateBill creates a bill from JSON.
func (h *Handlers) APICreateBill(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeBillRequest(r)
	if err != nil {
		if models.IsValidationError(err) {
			writeAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{"invalid JSON body"})
		return
	}
	bill := &models.Bill{Status: models.StatusPending}
	patch.Apply(bill)
	if err := h.db.CreateBill(r.Context(), GetUserFromContext(r).ID, bill); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

type billUpdateResponse struct {
	Bill           *models.Bill `json:"bill"`
	NextOccurrence *models.Bill `json:"next_occurrence,omitempty"`
}

// APIUpdateBill applies a partial update.
func (h *Handlers) APIUpdateBill(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeBillRequest(r)
	if err != nil {
		if models.IsValidationError(err) {
			writeAPIError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{"invalid JSON body"})
		return
	}
	updated, next, err := h.db.UpdateBill(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"), patch)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billUpdateResponse{Bill: updated, NextOccurrence: next})
}

// APIMarkBillPaid marks a bill paid.
func (h *Handlers) APIMarkBillPaid(w http.ResponseWriter, r *http.Request) {
	updated, next, err := h.db.MarkBillPaid(r.Context(), GetUserFromContext(r).ID, r.PathValue("id"))
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, billUpdateResponse{Bill: updated, NextOccurrence: next})
}

// APIDeleteBill deletes a bill.
func (h *Handlers) APIDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteBill(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	BillID        string               `json:"bill_id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentDate   string               `json:"payment_date"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Notes         string               `json:"notes"`
}

// APIListPayments returns payments newest first, filtered like the UI.
func (h *Handlers) APIListPayments(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := billing.PaymentFilter{
		Search: q.Get("q"),
		Method: models.PaymentMethod(q.Get("method")),
		Month:  q.Get("month"),
	}
	writeJSON(w, http.StatusOK, billing.FilterPayments(v.Payments, filter, h.now().Location()))
}

// APICreatePayment records a payment from JSON.
func (h *Handlers) APICreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{"invalid JSON body"})
		return
	}
	date, err := time.ParseInLocation(models.DateLayout, req.PaymentDate, h.now().Location())
	if err != nil {
		writeAPIError(w, r, models.ErrMissingPaymentDate)
		return
	}
	p := &models.Payment{
		BillID:        req.BillID,
		Amount:        req.Amount,
		PaymentDate:   date,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if err := h.db.CreatePayment(r.Context(), GetUserFromContext(r).ID, p); err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// APIDeletePayment deletes a payment.
func (h *Handlers) APIDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeletePayment(r.Context(), GetUserFromContext(r).ID, r.PathValue("id")); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// APIListNotifications returns current notifications with the read overlay applied.
func (h *Handlers) APIListNotifications(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: v.Notifications, Unread: v.Unread})
}

func (h *Handlers) apiNotificationAction(w http.ResponseWriter, r *http.Request, dismiss bool) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	n, ok := findNotification(v, r.PathValue("id"))
	if !ok {
		writeAPIError(w, r, storage.ErrNotFound)
		return
	}
	userID := GetUserFromContext(r).ID
	if dismiss {
		err = h.db.DismissNotification(r.Context(), userID, n.ID, n.BillID)
	} else {
		err = h.db.MarkNotificationRead(r.Context(), userID, n.ID, n.BillID)
	}
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APIMarkNotificationRead marks one notification read.
func (h *Handlers) APIMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.apiNotificationAction(w, r, false)
}

// APIDismissNotification dismisses one notification.
func (h *Handlers) APIDismissNotification(w http.ResponseWriter, r *http.Request) {
	h.apiNotificationAction(w, r, true)
}

// APIMarkAllNotificationsRead marks every current notification read.
func (h *Handlers) APIMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	if err := h.db.MarkNotificationsRead(r.Context(), GetUserFromContext(r).ID, v.Notifications); err != nil {
		writeAPIError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// APISummary returns the dashboard figures.
func (h *Handlers) APISummary(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Summary billing.Summary          `json:"summary"`
		Series  []billing.MonthBucket    `json:"series"`
		ByType  []billing.CategoryBucket `json:"by_type"`
		Unread  int                      `json:"unread"`
	}{v.Summary, v.Series, v.ByType, v.Unread})
}

// APIAnalytics returns analytics over ?months= (default 12, at most 120).
func (h *Handlers) APIAnalytics(w http.ResponseWriter, r *http.Request) {
	v, err := h.overview(r)
	if err != nil {
		writeAPIError(w, r, err)
		return
	}
	months := billing.AnalyticsMonths
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 120 {
			writeJSON(w, http.StatusBadRequest, apiError{"months must be between 1 and 120"})
			return
		}
		months = n
	}
	writeJSON(w, http.StatusOK, v.AnalyticsFor(months))
}
