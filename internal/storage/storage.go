package storage

import "errors"

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrUserNotFound  = errors.New("user not found")
	ErrCatchNotFound = errors.New("catch not found")
)

// UpdateCatchParams carries a partial update. Nil fields keep their stored
// value; the catch date and owner are never touched.
type UpdateCatchParams struct {
	Species  *string
	Quantity *int
	Price    *float64
	Buyer    *string
}
