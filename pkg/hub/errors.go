package hub

import "errors"

// Protocol error codes sent to clients in error envelopes.
const (
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeAuthFailed           = "AUTH_FAILED"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeUnknownMessage       = "UNKNOWN_MESSAGE"
	CodeInternalError        = "INTERNAL_ERROR"
)

var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrAlreadyAuthenticated = errors.New("connection already authenticated")
)
