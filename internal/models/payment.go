package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodOnline       PaymentMethod = "online"
)

// PaymentMethods lists the known methods in display order.
var PaymentMethods = []PaymentMethod{MethodCash, MethodCard, MethodBankTransfer, MethodCheck, MethodOnline}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Payment records money paid, optionally against a bill. BillID is a weak
// reference: the bill may have been deleted since.
type Payment struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	BillID        string          `json:"bill_id,omitempty"`
	BillTitle     string          `json:"bill_title,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the field invariants of a payment.
func (p *Payment) Validate() error {
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !p.PaymentMethod.Valid() {
		return ErrInvalidMethod
	}
	if p.PaymentDate.IsZero() {
		return ErrMissingPaymentDate
	}
	return nil
}
