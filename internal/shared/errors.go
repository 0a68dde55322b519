package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrInvalidReference   = fmt.Errorf("invalid reference")

	// Push channel errors
	ErrNotConnected     = fmt.Errorf("push channel not connected")
	ErrAlreadyConnected = fmt.Errorf("push channel already connected")
	ErrHandshake        = fmt.Errorf("push channel handshake failed")
	ErrMalformedFrame   = fmt.Errorf("malformed frame")

	// Chat session errors
	ErrEmptyMessage  = fmt.Errorf("message is empty")
	ErrMissingRoom   = fmt.Errorf("missing room id")
	ErrOwnerOnly     = fmt.Errorf("only the room owner can do this")
	ErrCancelled     = fmt.Errorf("cancelled")
	ErrSessionClosed = fmt.Errorf("chat session closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
