package domain

import "errors"

// Engine-wide error taxonomy. Callers match with errors.Is; packages wrap
// these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrConnection means a join attempt failed at the transport or auth
	// layer. Fatal to that attempt.
	ErrConnection = errors.New("connection failed")

	// ErrNotReady means a mutating operation was attempted while the
	// session is reconnecting. Retryable by the caller.
	ErrNotReady = errors.New("session not ready")

	// ErrValidation means the input was malformed. Never retried
	// automatically.
	ErrValidation = errors.New("invalid input")

	// ErrNetwork means a transient I/O failure on send or poll.
	ErrNetwork = errors.New("network failure")
)
