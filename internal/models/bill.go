package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for due dates in forms, the API and storage.
const DateLayout = "2006-01-02"

var (
	ErrEmptyTitle             = errors.New("title is required")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidUtilityType     = errors.New("unknown utility type")
	ErrInvalidStatus          = errors.New("unknown bill status")
	ErrInvalidPeriod          = errors.New("unknown recurring period")
	ErrPeriodWithoutRecurring = errors.New("recurring period set on a non-recurring bill")
	ErrRecurringWithoutPeriod = errors.New("recurring bill requires a period")
	ErrMissingDueDate         = errors.New("due date is required")
	ErrInvalidMethod          = errors.New("unknown payment method")
	ErrMissingPaymentDate     = errors.New("payment date is required")
)

var validationErrors = []error{
	ErrEmptyTitle, ErrInvalidAmount, ErrInvalidUtilityType, ErrInvalidStatus, ErrInvalidPeriod,
	ErrPeriodWithoutRecurring, ErrRecurringWithoutPeriod, ErrMissingDueDate, ErrInvalidMethod,
	ErrMissingPaymentDate,
}

// IsValidationError reports whether err is caused by invalid user input.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UtilityType is the kind of utility a bill is for.
type UtilityType string

const (
	UtilityElectricity UtilityType = "electricity"
	UtilityWater       UtilityType = "water"
	UtilityGas         UtilityType = "gas"
	UtilityInternet    UtilityType = "internet"
)

// UtilityTypes lists the known utility types in display order.
var UtilityTypes = []UtilityType{UtilityElectricity, UtilityWater, UtilityGas, UtilityInternet}

// Valid reports whether t is a known utility type.
func (t UtilityType) Valid() bool {
	for _, known := range UtilityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RecurringPeriod is how often a recurring bill repeats.
type RecurringPeriod string

const (
	PeriodMonthly   RecurringPeriod = "monthly"
	PeriodQuarterly RecurringPeriod = "quarterly"
	PeriodAnnually  RecurringPeriod = "annually"
)

var RecurringPeriods = []RecurringPeriod{PeriodMonthly, PeriodQuarterly, PeriodAnnually}

func (p RecurringPeriod) Valid() bool {
	for _, known := range RecurringPeriods {
		if p == known {
			return true
		}
	}
	return false
}

// BillStatus is the persisted payment state of a bill. Overdue is never
// stored; it is derived from the due date at read time.
type BillStatus string

const (
	StatusPending BillStatus = "pending"
	StatusPaid    BillStatus = "paid"
)

func (s BillStatus) Valid() bool {
	return s == StatusPending || s == StatusPaid
}

// DisplayStatus is the status shown to the user.
type DisplayStatus string

const (
	DisplayPending DisplayStatus = "pending"
	DisplayPaid    DisplayStatus = "paid"
	DisplayOverdue DisplayStatus = "overdue"
)

// Bill is a single utility bill owned by a user.
type Bill struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	Title           string          `json:"title"`
	UtilityType     UtilityType     `json:"utility_type"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	IsRecurring     bool            `json:"is_recurring"`
	RecurringPeriod RecurringPeriod `json:"recurring_period,omitempty"`
	Status          BillStatus      `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate checks the field invariants of a bill.
func (b *Bill) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if !b.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !b.UtilityType.Valid() {
		return ErrInvalidUtilityType
	}
	if !b.Status.Valid() {
		return ErrInvalidStatus
	}
	if b.DueDate.IsZero() {
		return ErrMissingDueDate
	}
	if b.IsRecurring {
		if b.RecurringPeriod == "" {
			return ErrRecurringWithoutPeriod
		}
		if !b.RecurringPeriod.Valid() {
			return ErrInvalidPeriod
		}
	} else if b.RecurringPeriod != "" {
		return ErrPeriodWithoutRecurring
	}
	return nil
}

// BillPatch is a partial update. Nil fields are left unchanged.
type BillPatch struct {
	Title           *string          `json:"title,omitempty"`
	UtilityType     *UtilityType     `json:"utility_type,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	IsRecurring     *bool            `json:"is_recurring,omitempty"`
	RecurringPeriod *RecurringPeriod `json:"recurring_period,omitempty"`
	Status          *BillStatus      `json:"status,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// Apply copies the set fields of p onto b. Turning recurrence off clears the period.
func (p BillPatch) Apply(b *Bill) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.UtilityType != nil {
		b.UtilityType = *p.UtilityType
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.DueDate != nil {
		b.DueDate = *p.DueDate
	}
	if p.IsRecurring != nil {
		b.IsRecurring = *p.IsRecurring
		if !b.IsRecurring {
			b.RecurringPeriod = ""
		}
	}
	if p.RecurringPeriod != nil && b.IsRecurring {
		b.RecurringPeriod = *p.RecurringPeriod
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
}
