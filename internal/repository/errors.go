// Package repository defines the persistence layer and the error values
// shared across repositories.  These sentinel values allow higher layers
// such as the auth core and handlers to distinguish between different
// failure scenarios without inspecting driver errors.  For example,
// ErrPasscodeNotFound indicates that no live passcode exists for an
// account and purpose, while ErrConflict signals that an update cannot
// proceed because of existing state (e.g. an account that already holds
// the labor role asking to become a labor).
package repository

import "errors"

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = errors.New("account not found")

// ErrEmailExists is returned when signup uses an email that is already
// registered.  Handlers should translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrPasscodeNotFound is returned when no pending passcode exists for the
// requested account and purpose.
var ErrPasscodeNotFound = errors.New("passcode not found")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers should translate this into an HTTP 409
// or 400 response.
var ErrConflict = errors.New("conflict")
