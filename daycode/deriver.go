package daycode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/pkg/errors"
)

const (
	// CodeLength is the number of hex characters shown to users.
	CodeLength = 6
	dayLayout  = "2006-01-02"
)

// ErrMissingSecret is returned when the deriver is built without a shared secret.
var ErrMissingSecret = errors.Wrap(apperrors.ErrConfiguration, "attendance code secret is not configured")

// Deriver produces the rotating attendance code of a class session. A code depends only
// on the class, its two participants and the UTC calendar day, so it is recomputed on
// demand and never stored.
type Deriver struct {
	key []byte
}

// NewDeriver keys the HMAC with the configured secret as is, so any holder of the secret
// computes the same codes. There is no fallback secret.
func NewDeriver(secret []byte) (*Deriver, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Deriver{key: key}, nil
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Derive returns the 6 character uppercase hex code for the given day. Only the UTC
// date of day is used, so every call within the same day yields the same code.
func (d *Deriver) Derive(classID, studentID, tutorID string, day time.Time) string {
	mac := hmac.New(sha256.New, d.key)
	mac.Write([]byte(message(classID, studentID, tutorID, day)))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))[:CodeLength])
}

// Verify recomputes the code for day and compares it case-insensitively.
// The comparison is not constant-time; a code is only good for one class on one day.
func (d *Deriver) Verify(input, classID, studentID, tutorID string, day time.Time) bool {
	input = strings.TrimSpace(input)
	if len(input) != CodeLength {
		return false
	}
	return strings.EqualFold(input, d.Derive(classID, studentID, tutorID, day))
}

func message(classID, studentID, tutorID string, day time.Time) string {
	return strings.Join([]string{Day(day).Format(dayLayout), classID, studentID, tutorID}, ":")
}
