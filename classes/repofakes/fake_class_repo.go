package classrepofakes

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-class-attendance/classes"
	"github.com/pkg/errors"
)

var _ classes.Repo = (*FakeClassRepo)(nil)

type FakeClassRepo struct {
	classes map[string]*classes.ClassSession
	lock    sync.RWMutex
}

func NewFakeClassRepo() *FakeClassRepo {
	return &FakeClassRepo{
		classes: make(map[string]*classes.ClassSession),
	}
}

func (cr *FakeClassRepo) Create(_ context.Context, session *classes.ClassSession) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if _, ok := cr.classes[session.ID]; ok {
		return errors.Errorf("class %s already exists", session.ID)
	}
	if err := session.Validate(); err != nil {
		return errors.Wrap(err, "[FakeClassRepo.Create]")
	}
	cr.classes[session.ID] = session.Clone()
	return nil
}

func (cr *FakeClassRepo) Get(_ context.Context, classID string) (*classes.ClassSession, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	session, ok := cr.classes[classID]
	if !ok {
		return nil, classes.ErrNotFound
	}
	return session.Clone(), nil
}

func (cr *FakeClassRepo) CompareAndSwap(_ context.Context, cond classes.Precondition, next *classes.ClassSession) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	stored, ok := cr.classes[next.ID]
	if !ok {
		return classes.ErrNotFound
	}
	if !cond.Matches(stored) {
		return classes.ErrConflict
	}

	// Identity fields are immutable; only the lifecycle fields are taken from next.
	updated := stored.Clone()
	updated.Status = next.Status
	updated.AttendanceToken = next.AttendanceToken
	updated.VerificationDate = next.VerificationDate
	updated.EndTime = next.EndTime
	if err := updated.Validate(); err != nil {
		return errors.Wrap(err, "[FakeClassRepo.CompareAndSwap]")
	}
	cr.classes[next.ID] = updated.Clone()
	return nil
}

// SetStatus forces a status, bypassing the lifecycle. Used to simulate transitions owned
// by other services (e.g. cancellation).
func (cr *FakeClassRepo) SetStatus(classID string, status classes.Status) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	stored, ok := cr.classes[classID]
	if !ok {
		return classes.ErrNotFound
	}
	now := time.Now().UTC()
	stored.Status = status
	if status != classes.StatusScheduled {
		stored.AttendanceToken = ""
	}
	if (status == classes.StatusInProgress || status == classes.StatusCompleted) && stored.VerificationDate == nil {
		stored.VerificationDate = &now
	}
	if status == classes.StatusCompleted && stored.EndTime == nil {
		stored.EndTime = &now
	}
	return nil
}
