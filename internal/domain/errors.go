package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Crypto primitive failures. Decryption fails closed — no partial plaintext.
	ErrInvalidFormat = errors.New("invalid encrypted payload format")
	ErrAuthFailed    = errors.New("authentication failed")

	// Magic-link failures. Handlers collapse all of these into one generic
	// user-facing message so a caller cannot tell which check tripped.
	ErrInvalidMagicLink = errors.New("invalid magic link")
	ErrLinkExpired      = errors.New("magic link expired")
	ErrCrossSession     = errors.New("magic link bound to a different session")

	// ErrReadOnlyReplica marks a write rejected because the current region
	// serves a read-only database replica. Recovered via a replay redirect.
	ErrReadOnlyReplica = errors.New("read-only replica")
)
