package classes

import (
	"context"

	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
)

var (
	ErrNotFound = apperrors.ErrNotFound
	ErrConflict = apperrors.ErrConflict
)

// Precondition is the state a stored session must still be in for a write to apply.
type Precondition struct {
	Status Status
	// AttendanceToken, when non-nil, must equal the stored token exactly.
	AttendanceToken *string
}

// Matches reports whether the stored session satisfies the precondition.
func (p Precondition) Matches(stored *ClassSession) bool {
	if stored.Status != p.Status {
		return false
	}
	if p.AttendanceToken != nil && stored.AttendanceToken != *p.AttendanceToken {
		return false
	}
	return true
}

// Repo is the session-record store. Sessions are created by the booking flow and only
// ever mutated through CompareAndSwap.
type Repo interface {
	// Create stores a new session; it is an error if the id already exists.
	Create(ctx context.Context, session *ClassSession) error

	// Get returns a copy of the stored session or ErrNotFound.
	Get(ctx context.Context, classID string) (*ClassSession, error)

	// CompareAndSwap replaces the mutable fields (status, token, verification date,
	// end time) of next.ID only if the stored session matches cond. A mismatch returns
	// ErrConflict and writes nothing.
	CompareAndSwap(ctx context.Context, cond Precondition, next *ClassSession) error
}
