package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget-service/internal/models"
)

// AddTransaction appends a transaction and atomically adjusts the referenced
// allocation's balance by its amount. Returns the stored transaction with
// its assigned id and the allocation's resulting balance. Fails with
// ErrNotFound when the allocation does not exist, leaving nothing written.
func (r *Repository) AddTransaction(ctx context.Context, txn *models.Transaction) (int64, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction append: %w", err)
	}
	defer tx.Rollback() // no-op if already committed

	var balance int64
	err = tx.QueryRowContext(ctx,
		r.q(`UPDATE allocations SET balance = balance + $1 WHERE id = $2 RETURNING balance`),
		txn.Amount, txn.AllocationID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("allocation %d: %w", txn.AllocationID, models.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust allocation balance: %w", translate(err))
	}

	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	err = tx.QueryRowContext(ctx,
		r.q(`INSERT INTO transactions (allocation_id, amount, description, created_at) VALUES ($1, $2, $3, $4) RETURNING id`),
		txn.AllocationID, txn.Amount, txn.Description, txn.Timestamp).Scan(&txn.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", translate(err))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction append: %w", translate(err))
	}
	return balance, nil
}

// ListTransactions returns transactions matching the compiled filter clause
// in insertion order.
func (r *Repository) ListTransactions(ctx context.Context, where string, args []any) ([]models.Transaction, error) {
	query := `SELECT id, allocation_id, amount, description, created_at FROM transactions`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", translate(err))
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AllocationID, &t.Amount, &t.Description, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
