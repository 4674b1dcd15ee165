package contract

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadySet        = errors.New("price already set")
	ErrAlreadyEnded      = errors.New("order already ended")
	ErrStore             = errors.New("store failure")
	ErrDanglingReference = errors.New("dangling agent reference")

	ErrInvalidSession  = errors.New("session id is empty")
	ErrNoActiveFlow    = errors.New("no active flow for session")
	ErrUnexpectedInput = errors.New("input does not match the expected step")
)
