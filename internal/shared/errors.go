package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Catalog errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrLookupTransport    = fmt.Errorf("catalog request failed")

	// Store errors
	ErrInvalidFormat   = fmt.Errorf("invalid store format")
	ErrDuplicatePair   = fmt.Errorf("track pair already exists")
	ErrIndexOutOfRange = fmt.Errorf("track pair index out of range")

	// Input validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
