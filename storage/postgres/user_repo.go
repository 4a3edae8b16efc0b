package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
)

type UserRepo struct {
	db *sqlx.DB
}

var _ users.Repo = (*UserRepo)(nil)

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetAccount(ctx context.Context, accountID string) (*users.Account, error) {
	var account users.Account
	err := r.db.GetContext(ctx, &account, `SELECT id, email, display_name, role, date_joined FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return nil, notFound(err, "account", accountID)
	}
	return &account, nil
}

func (r *UserRepo) GetTutorProfileByAccount(ctx context.Context, accountID string) (*users.TutorProfile, error) {
	var profile users.TutorProfile
	err := r.db.GetContext(ctx, &profile, `SELECT id, account_id FROM tutor_profiles WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, notFound(err, "tutor profile for account", accountID)
	}
	return &profile, nil
}

func (r *UserRepo) GetStudent(ctx context.Context, studentID string) (*users.Student, error) {
	var student users.Student
	err := r.db.GetContext(ctx, &student, `SELECT id, guardian_id FROM students WHERE id = $1`, studentID)
	if err != nil {
		return nil, notFound(err, "student", studentID)
	}
	return &student, nil
}

func (r *UserRepo) UpsertAccount(ctx context.Context, account *users.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	query := `
		INSERT INTO accounts (id, email, display_name, role)
		VALUES (:id, :email, :display_name, :role)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			role = EXCLUDED.role`
	_, err := r.db.NamedExecContext(ctx, query, account)
	return errors.Wrap(err, "[UserRepo.UpsertAccount]")
}

func (r *UserRepo) UpsertTutorProfile(ctx context.Context, profile *users.TutorProfile) error {
	if profile.AccountID == "" {
		return errors.New("tutor profile needs an account id")
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	query := `
		INSERT INTO tutor_profiles (id, account_id)
		VALUES (:id, :account_id)
		ON CONFLICT (account_id) DO UPDATE SET id = EXCLUDED.id`
	_, err := r.db.NamedExecContext(ctx, query, profile)
	return errors.Wrap(err, "[UserRepo.UpsertTutorProfile]")
}

func (r *UserRepo) UpsertStudent(ctx context.Context, student *users.Student) error {
	if student.ID == "" {
		return errors.New("student needs an id")
	}
	query := `
		INSERT INTO students (id, guardian_id)
		VALUES (:id, :guardian_id)
		ON CONFLICT (id) DO UPDATE SET guardian_id = EXCLUDED.guardian_id`
	_, err := r.db.NamedExecContext(ctx, query, student)
	return errors.Wrap(err, "[UserRepo.UpsertStudent]")
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(users.ErrNotFound, "%s %s", what, id)
	}
	return errors.Wrapf(err, "[UserRepo] %s %s", what, id)
}
