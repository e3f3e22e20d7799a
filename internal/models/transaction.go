package models

import "time"

// Transaction represents a monetary movement recorded against an allocation.
// Amounts are signed integers in minor currency units. Transactions are
// immutable once created; corrections are recorded as new transactions.
type Transaction struct {
	ID           int64     `json:"id"`
	AllocationID int64     `json:"allocation_id"`
	Amount       int64     `json:"amount"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
}
