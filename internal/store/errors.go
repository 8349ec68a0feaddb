package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientCredits is returned when a decrement would take a user's
// balance below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")
