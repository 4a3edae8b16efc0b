package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	accounts      map[string]*users.Account
	tutorProfiles map[string]*users.TutorProfile // keyed by account id
	students      map[string]*users.Student
	lock          sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts:      make(map[string]*users.Account),
		tutorProfiles: make(map[string]*users.TutorProfile),
		students:      make(map[string]*users.Student),
	}
}

func (ur *FakeUserRepo) GetAccount(_ context.Context, accountID string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	account, ok := ur.accounts[accountID]
	if !ok {
		return nil, errors.Wrapf(users.ErrNotFound, "account %s", accountID)
	}
	a := *account
	return &a, nil
}

func (ur *FakeUserRepo) GetTutorProfileByAccount(_ context.Context, accountID string) (*users.TutorProfile, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	profile, ok := ur.tutorProfiles[accountID]
	if !ok {
		return nil, errors.Wrapf(users.ErrNotFound, "tutor profile for account %s", accountID)
	}
	p := *profile
	return &p, nil
}

func (ur *FakeUserRepo) GetStudent(_ context.Context, studentID string) (*users.Student, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	student, ok := ur.students[studentID]
	if !ok {
		return nil, errors.Wrapf(users.ErrNotFound, "student %s", studentID)
	}
	s := *student
	return &s, nil
}

func (ur *FakeUserRepo) UpsertAccount(_ context.Context, account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	a := *account
	ur.accounts[account.ID] = &a
	return nil
}

func (ur *FakeUserRepo) UpsertTutorProfile(_ context.Context, profile *users.TutorProfile) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if profile.AccountID == "" {
		return errors.New("tutor profile needs an account id")
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	p := *profile
	ur.tutorProfiles[profile.AccountID] = &p
	return nil
}

func (ur *FakeUserRepo) UpsertStudent(_ context.Context, student *users.Student) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if student.ID == "" {
		return errors.New("student needs an id")
	}
	s := *student
	ur.students[student.ID] = &s
	return nil
}
