// Package repository defines error values shared across repositories and
// the service layer. These sentinels let handlers map failures onto HTTP
// responses without inspecting error strings: validation errors become
// 400s, availability conflicts 409s, ownership failures 403s and missing
// aggregates 404s.
package repository

import "errors"

// ErrInvalidRooms is returned when a hold request carries no room lines
// or a line with a zero quantity.
var ErrInvalidRooms = errors.New("invalid rooms")

// ErrInvalidDateRange is returned when check-out is not strictly after
// check-in.  A zero-night stay is not a stay.
var ErrInvalidDateRange = errors.New("invalid date range")

// ErrInsufficientAvailability is returned when at least one (room, night)
// row cannot satisfy the requested quantity.  The whole reservation is
// rejected; no partial increment survives.
var ErrInsufficientAvailability = errors.New("insufficient availability")

// ErrHoldNotFound is returned when a hold id or code does not exist.
var ErrHoldNotFound = errors.New("hold not found")

// ErrHoldNotActive is returned when an operation requires an active hold
// but the hold has already reached a different terminal state.
var ErrHoldNotActive = errors.New("hold not active")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as cancelling a booking whose stay has already
// started or shrinking capacity below the reserved count. Handlers
// translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDuplicateEvent is returned when a payment event id has already been
// recorded as processed. Callers treat it as an idempotent success, not
// a failure.
var ErrDuplicateEvent = errors.New("duplicate payment event")
