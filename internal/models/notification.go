package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationType is the bucket a pending bill falls into by days until due.
type NotificationType string

const (
	NotificationOverdue  NotificationType = "overdue"
	NotificationDueSoon  NotificationType = "due_soon"
	NotificationReminder NotificationType = "reminder"
)

// Priority orders notifications. Higher values sort first.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable weight for p.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Notification is derived from a pending bill; it is never stored. Only its
// read and dismissed flags are persisted, keyed by ID.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	BillID    string           `json:"bill_id"`
	BillTitle string           `json:"bill_title"`
	Amount    decimal.Decimal  `json:"amount"`
	DueDate   time.Time        `json:"due_date"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationState is the persisted per-user overlay for one notification id.
type NotificationState struct {
	NotificationID string    `json:"notification_id"`
	BillID         string    `json:"bill_id"`
	Read           bool      `json:"read"`
	Dismissed      bool      `json:"dismissed"`
	UpdatedAt      time.Time `json:"updated_at"`
}
