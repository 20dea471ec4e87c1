package service

import (
	"errors"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	"github.com/wricardo/mcp-training/chopsticks/game/session"
)

// ErrUnauthenticated is returned when an operation has no caller identity
var ErrUnauthenticated = errors.New("caller identity required")

// Code is a stable, machine-readable error category
type Code string

const (
	CodeSessionNotFound Code = "session_not_found"
	CodeNotJoinable     Code = "not_joinable"
	CodeNotInProgress   Code = "not_in_progress"
	CodeNotYourTurn     Code = "not_your_turn"
	CodeEmptySourceSlot Code = "empty_source_slot"
	CodeInvalidSlot     Code = "invalid_slot"
	CodeUnauthenticated Code = "unauthenticated"
	CodeInternal        Code = "internal"
)

// Error is returned by every GameService method that fails
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code of a service error, or CodeInternal
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// translate maps engine and storage errors onto service codes
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return newError(CodeUnauthenticated, err)
	case errors.Is(err, session.ErrSessionNotFound):
		return newError(CodeSessionNotFound, err)
	case errors.Is(err, engine.ErrNotJoinable):
		return newError(CodeNotJoinable, err)
	case errors.Is(err, engine.ErrNotInProgress):
		return newError(CodeNotInProgress, err)
	case errors.Is(err, engine.ErrNotYourTurn):
		return newError(CodeNotYourTurn, err)
	case errors.Is(err, engine.ErrEmptySourceSlot):
		return newError(CodeEmptySourceSlot, err)
	case errors.Is(err, engine.ErrInvalidSlot):
		return newError(CodeInvalidSlot, err)
	}
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}
