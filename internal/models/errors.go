package models

import "errors"

// Domain errors shared across layers. Handlers map them onto HTTP statuses
// (404, 400, 401, 409); anything else is a server error.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
)
