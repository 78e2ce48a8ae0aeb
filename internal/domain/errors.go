package domain

import (
	"errors"
	"strings"
)

// Error kinds surfaced by the registries and the movement/reset engine.
// Callers match them with errors.Is; every returned error wraps exactly one.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidReference    = errors.New("invalid reference")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrIllegalMove         = errors.New("illegal move")
	ErrStateMismatch       = errors.New("state mismatch")
	ErrOccupancyMismatch   = errors.New("occupancy mismatch")
	ErrDestinationOccupied = errors.New("destination occupied")
	ErrIntegrityConflict   = errors.New("integrity conflict")
	ErrResetDisabled       = errors.New("reset disabled")
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal            Code = "INTERNAL"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidReference    Code = "INVALID_REFERENCE"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeIllegalMove         Code = "ILLEGAL_MOVE"
	CodeStateMismatch       Code = "STATE_MISMATCH"
	CodeOccupancyMismatch   Code = "OCCUPANCY_MISMATCH"
	CodeDestinationOccupied Code = "DESTINATION_OCCUPIED"
	CodeIntegrityConflict   Code = "INTEGRITY_CONFLICT"
	CodeResetDisabled       Code = "RESET_DISABLED"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrInvalidInput, CodeInvalidInput},
	{ErrInvalidReference, CodeInvalidReference},
	{ErrNotFound, CodeNotFound},
	{ErrConflict, CodeConflict},
	{ErrIllegalMove, CodeIllegalMove},
	{ErrStateMismatch, CodeStateMismatch},
	{ErrOccupancyMismatch, CodeOccupancyMismatch},
	{ErrDestinationOccupied, CodeDestinationOccupied},
	{ErrIntegrityConflict, CodeIntegrityConflict},
	{ErrResetDisabled, CodeResetDisabled},
}

// CodeOf returns the code of the kind err wraps, or CodeInternal.
func CodeOf(err error) Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Message returns err's text from its kind onward, dropping the operation
// prefixes added while it propagated ("state mismatch: shipment not at 'from'").
func Message(err error) string {
	msg := err.Error()
	for _, c := range codes {
		if !errors.Is(err, c.err) {
			continue
		}
		kind := c.err.Error()
		i := strings.Index(msg, kind)
		if i < 0 || msg[i:] == kind+": "+kind {
			return kind
		}
		return msg[i:]
	}
	return msg
}
