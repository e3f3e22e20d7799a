package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"budget-service/internal/models"
	"github.com/lib/pq"
)

// Repository provides database operations
type Repository struct {
	db     *sql.DB
	driver string
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver}
}

// Ping verifies the store is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// begin opens the transactional unit of work for a mutating operation.
// Postgres runs serializable; sqlite serializes writers on its own and
// rejects non-default isolation levels.
func (r *Repository) begin(ctx context.Context) (*sql.Tx, error) {
	if r.driver == "postgres" {
		return r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return r.db.BeginTx(ctx, nil)
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// q rebinds $N placeholders for the current dialect. Queries are written in
// Postgres style with strictly ascending, never-reused placeholders, so a
// flat rewrite to ? is sound for sqlite.
func (r *Repository) q(query string) string {
	if r.driver == "postgres" {
		return query
	}
	return placeholderPattern.ReplaceAllString(query, "?")
}

// forUpdate returns the row-lock clause for the current dialect.
func (r *Repository) forUpdate() string {
	if r.driver == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// translate maps store-detected concurrency failures onto ErrConflict.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return models.ErrConflict
		}
	}
	return err
}
