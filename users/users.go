package users

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RoleType is the marketplace role an account acts under.
type RoleType string

const (
	RoleTutor   RoleType = "tutor"
	RoleStudent RoleType = "student"
	RoleParent  RoleType = "parent"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (RoleType, error) {
	role := RoleType(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", errors.Errorf("unknown role %q", s)
	}
	return role, nil
}

func (r RoleType) Valid() bool {
	switch r {
	case RoleTutor, RoleStudent, RoleParent:
		return true
	}
	return false
}

// Account is an authenticated principal.
type Account struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email,omitempty" db:"email"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	Role        RoleType  `json:"role" db:"role"`
	DateJoined  time.Time `json:"date_joined,omitempty" db:"date_joined"`
}

// TutorProfile maps a tutor account to the tutor id recorded on class sessions.
type TutorProfile struct {
	ID        string `json:"id" db:"id"`
	AccountID string `json:"account_id" db:"account_id"`
}

// Student is keyed by the student's own account id. GuardianID is the parent account
// of record.
type Student struct {
	ID         string `json:"id" db:"id"`
	GuardianID string `json:"guardian_id,omitempty" db:"guardian_id"`
}

// HasGuardian reports whether accountID is the guardian of record.
func (s *Student) HasGuardian(accountID string) bool {
	return s.GuardianID != "" && s.GuardianID == accountID
}
