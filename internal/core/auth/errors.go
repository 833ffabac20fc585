package auth

import "errors"

// Missing, malformed and unknown keys map to UNAUTHENTICATED so a caller
// cannot probe which keys exist. Revoked keys map to PERMISSION_DENIED.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")

	// ErrStore wraps failures of the key store; the interceptor reports
	// them as UNAVAILABLE.
	ErrStore = errors.New("key store unavailable")
)
