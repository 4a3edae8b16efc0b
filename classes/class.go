package classes

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-class-attendance/internal/utils"
)

// Status is the lifecycle state of a scheduled class session.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"   // Initial state, set by the booking flow
	StatusInProgress Status = "IN_PROGRESS" // Attendance verified
	StatusCompleted  Status = "COMPLETED"   // Terminal: ended by the tutor
	StatusCancelled  Status = "CANCELLED"   // Terminal: cancelled outside this service
)

// IsTerminal returns true for states from which no transition is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ClassSession is a single scheduled tutoring session between one tutor and one student.
type ClassSession struct {
	ID               string     `json:"id" db:"id"`                                         // Immutable
	TutorID          string     `json:"tutor_id" db:"tutor_id"`                             // Tutor-profile id, not the tutor's account id
	StudentID        string     `json:"student_id" db:"student_id"`                         // Immutable
	ScheduledAt      time.Time  `json:"scheduled_at" db:"scheduled_at"`                     // Planned start
	Status           Status     `json:"status" db:"status"`                                 // Exactly one value at any time
	AttendanceToken  string     `json:"-" db:"attendance_token"`                            // Live ephemeral token, never serialised
	VerificationDate *time.Time `json:"verification_date,omitempty" db:"verification_date"` // Set when entering IN_PROGRESS
	EndTime          *time.Time `json:"end_time,omitempty" db:"end_time"`                   // Set when entering COMPLETED
}

// HasLiveToken reports whether a token-channel verification is pending.
func (c *ClassSession) HasLiveToken() bool {
	return c.AttendanceToken != ""
}

// Clone returns a deep copy so callers can prepare a write without touching stored state.
func (c *ClassSession) Clone() *ClassSession {
	clone := *c
	clone.VerificationDate = utils.CopyTime(c.VerificationDate)
	clone.EndTime = utils.CopyTime(c.EndTime)
	return &clone
}

// Validate checks the record invariants:
//   - the token is only present while SCHEDULED
//   - VerificationDate is set iff the session has passed through IN_PROGRESS
//   - EndTime is set iff COMPLETED
func (c *ClassSession) Validate() error {
	if c.ID == "" || c.TutorID == "" || c.StudentID == "" {
		return fmt.Errorf("class session requires id, tutor id and student id")
	}
	if !c.Status.Valid() {
		return fmt.Errorf("unknown status %q", c.Status)
	}
	if c.HasLiveToken() && c.Status != StatusScheduled {
		return fmt.Errorf("attendance token present in status %s", c.Status)
	}
	switch c.Status {
	case StatusScheduled:
		if c.VerificationDate != nil {
			return fmt.Errorf("verification date set on a scheduled session")
		}
	case StatusInProgress, StatusCompleted:
		if c.VerificationDate == nil {
			return fmt.Errorf("verification date missing in status %s", c.Status)
		}
	}
	if (c.Status == StatusCompleted) != (c.EndTime != nil) {
		return fmt.Errorf("end time must be set iff the session is completed")
	}
	return nil
}
