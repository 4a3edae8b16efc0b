package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jrsteele09/go-class-attendance/classes"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

type ClassRepo struct {
	db *sqlx.DB
}

var _ classes.Repo = (*ClassRepo)(nil)

func NewClassRepo(db *sqlx.DB) *ClassRepo {
	return &ClassRepo{db: db}
}

func (r *ClassRepo) Create(ctx context.Context, session *classes.ClassSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if err := session.Validate(); err != nil {
		return errors.Wrap(err, "[ClassRepo.Create]")
	}
	query := `
		INSERT INTO class_sessions (
			id, tutor_id, student_id, scheduled_at, status,
			attendance_token, verification_date, end_time
		) VALUES (
			:id, :tutor_id, :student_id, :scheduled_at, :status,
			:attendance_token, :verification_date, :end_time
		)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.Errorf("class %s already exists", session.ID)
		}
		return errors.Wrap(err, "[ClassRepo.Create]")
	}
	return nil
}

func (r *ClassRepo) Get(ctx context.Context, classID string) (*classes.ClassSession, error) {
	query := `
		SELECT id, tutor_id, student_id, scheduled_at, status,
			   attendance_token, verification_date, end_time
		FROM class_sessions
		WHERE id = $1`

	var session classes.ClassSession
	if err := r.db.GetContext(ctx, &session, query, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(classes.ErrNotFound, "class %s", classID)
		}
		return nil, errors.Wrap(err, "[ClassRepo.Get]")
	}
	return &session, nil
}

// CompareAndSwap is a single conditional UPDATE; the row lock taken by the update
// serialises concurrent writers, and the loser matches zero rows.
func (r *ClassRepo) CompareAndSwap(ctx context.Context, cond classes.Precondition, next *classes.ClassSession) error {
	if err := next.Validate(); err != nil {
		return errors.Wrap(err, "[ClassRepo.CompareAndSwap]")
	}

	var expectedToken sql.NullString
	if cond.AttendanceToken != nil {
		expectedToken = sql.NullString{String: *cond.AttendanceToken, Valid: true}
	}

	query := `
		UPDATE class_sessions
		SET status = $4,
			attendance_token = $5,
			verification_date = $6,
			end_time = $7
		WHERE id = $1
		  AND status = $2
		  AND ($3::text IS NULL OR attendance_token = $3)`

	result, err := r.db.ExecContext(ctx, query,
		next.ID, cond.Status, expectedToken,
		next.Status, next.AttendanceToken, next.VerificationDate, next.EndTime,
	)
	if err != nil {
		return errors.Wrap(err, "[ClassRepo.CompareAndSwap]")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "[ClassRepo.CompareAndSwap] rows affected")
	}
	if rows == 1 {
		return nil
	}

	// Nothing matched: either the row is gone or its state moved on.
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM class_sessions WHERE id = $1)`, next.ID); err != nil {
		return errors.Wrap(err, "[ClassRepo.CompareAndSwap] exists")
	}
	if !exists {
		return errors.Wrapf(classes.ErrNotFound, "class %s", next.ID)
	}
	return classes.ErrConflict
}
