package errors

import "errors"

// Error taxonomy for the attendance-verification service. Every error returned by the
// lifecycle wraps exactly one of these so callers can classify it with Is.
var (
	// Configuration errors (missing or invalid secrets). Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// Authorization errors. Always reported uniformly, never which check failed.
	ErrForbidden = errors.New("forbidden")

	// State-precondition errors, including attempts against terminal states.
	ErrInvalidState = errors.New("invalid state")

	// Verification-mismatch errors (wrong code, wrong or missing token).
	ErrVerificationFailed = errors.New("verification failed")

	// Lookup errors
	ErrNotFound = errors.New("not found")

	// Compare-and-set lost against a concurrent writer; the caller must re-fetch.
	ErrConflict = errors.New("stale state")

	// Token consumption locked out after repeated mismatches.
	ErrTooManyAttempts = errors.New("too many attempts")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
