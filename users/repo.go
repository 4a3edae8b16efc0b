package users

import (
	"context"

	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
)

var ErrNotFound = apperrors.ErrNotFound

// Repo is the account directory. Accounts and profiles are owned by the registration flow;
// this service only reads them, the upserts exist for seeding.
type Repo interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	// GetTutorProfileByAccount resolves the tutor id used on class sessions.
	GetTutorProfileByAccount(ctx context.Context, accountID string) (*TutorProfile, error)
	// GetStudent returns the student record, including its guardian of record.
	GetStudent(ctx context.Context, studentID string) (*Student, error)

	UpsertAccount(ctx context.Context, account *Account) error
	UpsertTutorProfile(ctx context.Context, profile *TutorProfile) error
	UpsertStudent(ctx context.Context, student *Student) error
}
