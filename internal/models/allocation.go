package models

// Allocation represents a named bucket of budgeted money with a running
// balance in minor currency units.
type Allocation struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}
