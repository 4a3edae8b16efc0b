package access

import (
	"context"

	"github.com/jrsteele09/go-class-attendance/classes"
	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrForbidden is the single outcome of every failed access decision. The reason is only
// ever logged, so callers cannot probe which relationship was missing.
var ErrForbidden = apperrors.ErrForbidden

// Actor is the authenticated caller. ID is the account id.
type Actor struct {
	ID   string         `json:"id"`
	Role users.RoleType `json:"role"`
}

// Resolver decides whether an actor may act on a class session.
type Resolver struct {
	users  users.Repo
	logger zerolog.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(userRepo users.Repo, options ...ResolverOption) (*Resolver, error) {
	if userRepo == nil {
		return nil, errors.New("[NewResolver] user repo is required")
	}
	r := &Resolver{
		users:  userRepo,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Authorize succeeds iff the actor is the session's tutor, the session's student, or the
// guardian of record of the session's student.
func (r *Resolver) Authorize(ctx context.Context, actor Actor, session *classes.ClassSession) error {
	if actor.ID == "" {
		return r.deny(actor, session, "anonymous actor")
	}

	switch actor.Role {
	case users.RoleTutor:
		profile, err := r.users.GetTutorProfileByAccount(ctx, actor.ID)
		if err != nil {
			return r.deny(actor, session, "tutor profile lookup: "+err.Error())
		}
		if profile.ID != session.TutorID {
			return r.deny(actor, session, "not the tutor of this class")
		}
		return nil

	case users.RoleStudent:
		if actor.ID != session.StudentID {
			return r.deny(actor, session, "not the student of this class")
		}
		return nil

	case users.RoleParent:
		student, err := r.users.GetStudent(ctx, session.StudentID)
		if err != nil {
			return r.deny(actor, session, "student lookup: "+err.Error())
		}
		if !student.HasGuardian(actor.ID) {
			return r.deny(actor, session, "not the guardian of the class student")
		}
		return nil
	}
	return r.deny(actor, session, "unknown role")
}

// RequireRole gives the same uniform outcome as Authorize when the actor's role is not
// one of roles.
func (r *Resolver) RequireRole(actor Actor, roles ...users.RoleType) error {
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return r.deny(actor, nil, "role not permitted for this operation")
}

func (r *Resolver) deny(actor Actor, session *classes.ClassSession, reason string) error {
	event := r.logger.Debug().
		Str("actor_id", actor.ID).
		Str("role", string(actor.Role)).
		Str("reason", reason)
	if session != nil {
		event = event.Str("class_id", session.ID)
	}
	event.Msg("access denied")
	return ErrForbidden
}
