package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"utility-tracker/internal/billing"
	"utility-tracker/internal/models"
)

const billColumns = `id, user_id, title, utility_type, amount, due_date, is_recurring,
	COALESCE(recurring_period, ''), status, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (models.Bill, error) {
	var b models.Bill
	var due string
	if err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.UtilityType, &b.Amount, &due, &b.IsRecurring,
		&b.RecurringPeriod, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return models.Bill{}, err
	}
	d, err := time.Parse(models.DateLayout, due)
	if err != nil {
		return models.Bill{}, fmt.Errorf("bad due date %q on bill %s: %w", due, b.ID, err)
	}
	b.DueDate = d
	return b, nil
}

func nullablePeriod(p models.RecurringPeriod) any {
	if p == "" {
		return nil
	}
	return string(p)
}

// insertBill validates b, assigns an id and timestamps, and inserts it inside tx.
func insertBill(ctx context.Context, tx *sql.Tx, userID int64, b *models.Bill) error {
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if err := b.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.ID = uuid.NewString()
	b.UserID = userID
	b.DueDate = billing.Day(b.DueDate)
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO bills (id, user_id, title, utility_type, amount, due_date, is_recurring,
			recurring_period, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, userID, b.Title, string(b.UtilityType), b.Amount.String(), b.DueDate.Format(models.DateLayout),
		b.IsRecurring, nullablePeriod(b.RecurringPeriod), string(b.Status), b.Notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// CreateBill stores a new bill for userID. The bill's ID and timestamps are set on b.
func (db *DB) CreateBill(ctx context.Context, userID int64, b *models.Bill) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertBill(ctx, tx, userID, b); err != nil {
		return err
	}
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBill returns one of userID's bills.
func (db *DB) GetBill(ctx context.Context, userID int64, id string) (*models.Bill, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE id = ? AND user_id = ?", id, userID)
	b, err := scanBill(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

// ListBills returns all of userID's bills, soonest due first.
func (db *DB) ListBills(ctx context.Context, userID int64) ([]models.Bill, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE user_id = ? ORDER BY due_date ASC, created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := make([]models.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// UpdateBill applies patch to one of userID's bills. When a recurring bill
// moves from pending to paid, the next occurrence is created in the same
// transaction and returned as next. A bill rolls forward at most once, even
// if it is set back to pending and paid again.
func (db *DB) UpdateBill(ctx context.Context, userID int64, id string, patch models.BillPatch) (updated *models.Bill, next *models.Bill, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanBill(tx.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE id = ? AND user_id = ?", id, userID))
	if err != nil {
		return nil, nil, notFound(err)
	}

	var rolledInto sql.NullString
	if err := tx.QueryRowContext(ctx,
		"SELECT next_bill_id FROM bills WHERE id = ?", id).Scan(&rolledInto); err != nil {
		return nil, nil, fmt.Errorf("failed to read next occurrence: %w", err)
	}

	b := current
	patch.Apply(&b)
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	b.DueDate = billing.Day(b.DueDate)
	b.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE bills SET title = ?, utility_type = ?, amount = ?, due_date = ?, is_recurring = ?,
			recurring_period = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		b.Title, string(b.UtilityType), b.Amount.String(), b.DueDate.Format(models.DateLayout), b.IsRecurring,
		nullablePeriod(b.RecurringPeriod), string(b.Status), b.Notes, b.UpdatedAt, id, userID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update bill: %w", err)
	}

	if current.Status == models.StatusPending && b.Status == models.StatusPaid && !rolledInto.Valid {
		if n, ok := billing.NextOccurrence(b); ok {
			if err := insertBill(ctx, tx, userID, &n); err != nil {
				return nil, nil, err
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE bills SET next_bill_id = ? WHERE id = ?", n.ID, id); err != nil {
				return nil, nil, fmt.Errorf("failed to link next occurrence: %w", err)
			}
			next = &n
		}
	}

	if err := bumpRevision(ctx, tx, userID); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &b, next, nil
}

// MarkBillPaid sets a bill's status to paid. See UpdateBill for recurring bills.
func (db *DB) MarkBillPaid(ctx context.Context, userID int64, id string) (*models.Bill, *models.Bill, error) {
	paid := models.StatusPaid
	return db.UpdateBill(ctx, userID, id, models.BillPatch{Status: &paid})
}

// DeleteBill removes one of userID's bills. Payments made against it are kept
// with their bill reference cleared; its notification state is removed.
func (db *DB) DeleteBill(ctx context.Context, userID int64, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM bills WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete bill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}
