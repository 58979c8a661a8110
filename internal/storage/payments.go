package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"utility-tracker/internal/models"
)

const paymentSelect = `
	SELECT p.id, p.user_id, COALESCE(p.bill_id, ''), COALESCE(b.title, ''), p.amount,
		p.payment_date, p.payment_method, p.notes, p.created_at
	FROM payments p
	LEFT JOIN bills b ON b.id = p.bill_id`

func scanPayment(row rowScanner) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.BillID, &p.BillTitle, &p.Amount,
		&p.PaymentDate, &p.PaymentMethod, &p.Notes, &p.CreatedAt)
	return p, err
}

func nullableBillID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

// checkBillOwner makes sure a payment only references the caller's own bills.
func checkBillOwner(ctx context.Context, tx *sql.Tx, userID int64, billID string) error {
	if billID == "" {
		return nil
	}
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM bills WHERE id = ? AND user_id = ?", billID, userID).Scan(&one)
	if err != nil {
		return fmt.Errorf("bill %s: %w", billID, notFound(err))
	}
	return nil
}

// CreatePayment stores a new payment for userID. Method defaults to card.
func (db *DB) CreatePayment(ctx context.Context, userID int64, p *models.Payment) error {
	if p.PaymentMethod == "" {
		p.PaymentMethod = models.MethodCard
	}
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkBillOwner(ctx, tx, userID, p.BillID); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.UserID = userID
	p.PaymentDate = p.PaymentDate.UTC()
	p.CreatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, user_id, bill_id, amount, payment_date, payment_method, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, userID, nullableBillID(p.BillID), p.Amount.String(), p.PaymentDate,
		string(p.PaymentMethod), p.Notes, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetPayment returns one of userID's payments.
func (db *DB) GetPayment(ctx context.Context, userID int64, id string) (*models.Payment, error) {
	row := db.conn.QueryRowContext(ctx, paymentSelect+" WHERE p.id = ? AND p.user_id = ?", id, userID)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListPayments returns all of userID's payments, most recent first.
func (db *DB) ListPayments(ctx context.Context, userID int64) ([]models.Payment, error) {
	rows, err := db.conn.QueryContext(ctx,
		paymentSelect+" WHERE p.user_id = ? ORDER BY p.payment_date DESC, p.created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdatePayment replaces the editable fields of one of userID's payments with those of p.
func (db *DB) UpdatePayment(ctx context.Context, userID int64, id string, p *models.Payment) error {
	if p.PaymentMethod == "" {
		p.PaymentMethod = models.MethodCard
	}
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkBillOwner(ctx, tx, userID, p.BillID); err != nil {
		return err
	}

	p.PaymentDate = p.PaymentDate.UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET bill_id = ?, amount = ?, payment_date = ?, payment_method = ?, notes = ?
		WHERE id = ? AND user_id = ?`,
		nullableBillID(p.BillID), p.Amount.String(), p.PaymentDate, string(p.PaymentMethod), p.Notes, id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	p.ID = id
	p.UserID = userID
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePayment removes one of userID's payments.
func (db *DB) DeletePayment(ctx context.Context, userID int64, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM payments WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := bumpRevision(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}
