package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"budget-service/internal/models"
)

// CreateAllocation creates a new allocation in the database
func (r *Repository) CreateAllocation(ctx context.Context, alloc *models.Allocation) error {
	query := `
		INSERT INTO allocations (name, balance)
		VALUES ($1, $2)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, r.q(query), alloc.Name, alloc.Balance).Scan(&alloc.ID)
	if err != nil {
		return fmt.Errorf("failed to create allocation: %w", translate(err))
	}
	return nil
}

// GetAllocation retrieves an allocation by id
func (r *Repository) GetAllocation(ctx context.Context, id int64) (*models.Allocation, error) {
	alloc := &models.Allocation{}
	query := `SELECT id, name, balance FROM allocations WHERE id = $1`
	err := r.db.QueryRowContext(ctx, r.q(query), id).Scan(&alloc.ID, &alloc.Name, &alloc.Balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("allocation %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find allocation: %w", translate(err))
	}
	return alloc, nil
}

// UpdateAllocation replaces the mutable fields of an allocation by id.
// The caller supplies the complete desired state; there is no partial patch.
func (r *Repository) UpdateAllocation(ctx context.Context, alloc *models.Allocation) error {
	query := `UPDATE allocations SET name = $1, balance = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, r.q(query), alloc.Name, alloc.Balance, alloc.ID)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", translate(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("allocation %d: %w", alloc.ID, models.ErrNotFound)
	}
	return nil
}

// SplitAllocation moves amount out of allocation id into a newly created
// allocation and returns it. The source keeps its name; the new allocation
// inherits it and starts with no transactions. Conservation holds: the two
// resulting balances sum to the original.
func (r *Repository) SplitAllocation(ctx context.Context, id, amount int64) (*models.Allocation, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin split: %w", err)
	}
	defer tx.Rollback() // no-op if already committed

	var name string
	var balance int64
	err = tx.QueryRowContext(ctx, r.q(`SELECT name, balance FROM allocations WHERE id = $1`+r.forUpdate()), id).
		Scan(&name, &balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("allocation %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read allocation: %w", translate(err))
	}

	if amount < 0 || amount > balance {
		return nil, fmt.Errorf("%w: split amount %d outside [0, %d]", models.ErrInvalidArgument, amount, balance)
	}

	if _, err := tx.ExecContext(ctx, r.q(`UPDATE allocations SET balance = balance - $1 WHERE id = $2`), amount, id); err != nil {
		return nil, fmt.Errorf("failed to decrement allocation: %w", translate(err))
	}

	out := &models.Allocation{Name: name, Balance: amount}
	err = tx.QueryRowContext(ctx, r.q(`INSERT INTO allocations (name, balance) VALUES ($1, $2) RETURNING id`), name, amount).
		Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create split allocation: %w", translate(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit split: %w", translate(err))
	}
	return out, nil
}

// MergeAllocations consumes the given allocations and returns a single new
// one holding the summed balance. Transactions of the consumed allocations
// are re-pointed at the merged one, so the ledger stays intact. The merged
// allocation takes the name of the first id in the caller's order. Nothing
// is created unless every id resolves.
func (r *Repository) MergeAllocations(ctx context.Context, ids []int64) (*models.Allocation, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		r.q(`SELECT id, name, balance FROM allocations WHERE id IN (`+placeholders(1, len(ids))+`)`+r.forUpdate()),
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to read allocations: %w", translate(err))
	}

	names := make(map[int64]string, len(ids))
	var total int64
	for rows.Next() {
		var aid, balance int64
		var name string
		if err := rows.Scan(&aid, &name, &balance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		names[aid] = name
		total += balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allocations: %w", translate(err))
	}

	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return nil, fmt.Errorf("allocation %d: %w", id, models.ErrNotFound)
		}
	}

	merged := &models.Allocation{Name: names[ids[0]], Balance: total}
	err = tx.QueryRowContext(ctx, r.q(`INSERT INTO allocations (name, balance) VALUES ($1, $2) RETURNING id`), merged.Name, merged.Balance).
		Scan(&merged.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create merged allocation: %w", translate(err))
	}

	if _, err := tx.ExecContext(ctx,
		r.q(`UPDATE transactions SET allocation_id = $1 WHERE allocation_id IN (`+placeholders(2, len(ids))+`)`),
		append([]any{merged.ID}, int64Args(ids)...)...); err != nil {
		return nil, fmt.Errorf("failed to re-point transactions: %w", translate(err))
	}

	if _, err := tx.ExecContext(ctx,
		r.q(`DELETE FROM allocations WHERE id IN (`+placeholders(1, len(ids))+`)`),
		int64Args(ids)...); err != nil {
		return nil, fmt.Errorf("failed to delete merged inputs: %w", translate(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", translate(err))
	}
	return merged, nil
}

// ListAllocations returns allocations matching the compiled filter clause
// in insertion order. An empty clause matches everything.
func (r *Repository) ListAllocations(ctx context.Context, where string, args []any) ([]models.Allocation, error) {
	query := `SELECT id, name, balance FROM allocations`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", translate(err))
	}
	defer rows.Close()

	allocs := []models.Allocation{}
	for rows.Next() {
		var a models.Allocation
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// placeholders renders $start..$start+n-1 as a comma-separated list.
// Placeholder numbers always ascend so both dialects bind positionally.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
