package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/jrsteele09/go-class-attendance/classes"
	"github.com/jrsteele09/go-class-attendance/daycode"
	"github.com/jrsteele09/go-class-attendance/events"
	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/jrsteele09/go-class-attendance/token"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Channel is the way a tutor proves the student is present.
type Channel string

const (
	ChannelCode  Channel = "code"
	ChannelToken Channel = "token"
)

// Verification is the proof supplied to StartSession: the student's code of the day or
// a token the student side issued.
type Verification struct {
	Channel Channel
	Payload string
}

var ErrUnknownChannel = errors.Wrap(apperrors.ErrVerificationFailed, "unknown verification channel")

// Repos holds all repository dependencies for the Service
type Repos struct {
	Classes classes.Repo
}

// Service drives the class session lifecycle:
//
//	SCHEDULED -> IN_PROGRESS -> COMPLETED
//
// Every operation authorizes the actor before looking at the session state or the
// supplied proof, and every mutation is a compare-and-set on the expected prior state.
type Service struct {
	repos     Repos
	codes     *daycode.Deriver
	tokens    *token.Issuer
	access    *access.Resolver
	publisher events.Publisher
	logger    zerolog.Logger
	nowTime   func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPublisher sets where committed transitions are announced.
func WithPublisher(publisher events.Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func NewService(
	repos Repos,
	codes *daycode.Deriver,
	tokens *token.Issuer,
	resolver *access.Resolver,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Classes == nil {
		return nil, errors.New("[NewService] Classes repo is required")
	}
	if codes == nil {
		return nil, errors.Wrap(daycode.ErrMissingSecret, "[NewService] code deriver is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}
	if resolver == nil {
		return nil, errors.New("[NewService] access resolver is required")
	}

	s := &Service{
		repos:     repos,
		codes:     codes,
		tokens:    tokens,
		access:    resolver,
		publisher: events.Nop{},
		logger:    zerolog.Nop(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Get returns the session if the actor is one of its participants.
func (s *Service) Get(ctx context.Context, actor access.Actor, classID string) (*classes.ClassSession, error) {
	session, err := s.load(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ClassCode is the student side of the code channel: today's code for the class and the
// UTC day it is valid on. Only the student or their guardian may see it, and only while
// the class is scheduled.
func (s *Service) ClassCode(ctx context.Context, actor access.Actor, classID string) (string, time.Time, error) {
	session, err := s.authorizedSession(ctx, actor, classID, users.RoleStudent, users.RoleParent)
	if err != nil {
		return "", time.Time{}, err
	}
	if session.Status != classes.StatusScheduled {
		return "", time.Time{}, errors.Wrapf(apperrors.ErrInvalidState, "[Service.ClassCode] class is %s", session.Status)
	}
	day := daycode.Day(s.nowTime())
	return s.codes.Derive(session.ID, session.StudentID, session.TutorID, day), day, nil
}

// VerifyCode checks input against the class's code for the current UTC day. It does not
// authorize and does not mutate.
func (s *Service) VerifyCode(ctx context.Context, classID, input string) (bool, error) {
	session, err := s.load(ctx, classID)
	if err != nil {
		return false, err
	}
	return s.codes.Verify(input, session.ID, session.StudentID, session.TutorID, s.nowTime()), nil
}

// IssueToken is the student side of the token channel. Any previously issued token for
// the class stops working.
func (s *Service) IssueToken(ctx context.Context, actor access.Actor, classID string) (string, error) {
	if _, err := s.authorizedSession(ctx, actor, classID, users.RoleStudent, users.RoleParent); err != nil {
		return "", err
	}
	tok, err := s.tokens.Issue(ctx, classID)
	if err != nil {
		return "", errors.Wrap(err, "[Service.IssueToken]")
	}
	s.logger.Debug().Str("class_id", classID).Str("actor_id", actor.ID).Msg("attendance token issued")
	return tok, nil
}

// StartSession moves a scheduled class to IN_PROGRESS once the tutor supplies a valid
// proof. Authorization is checked first, then the state, then the proof.
func (s *Service) StartSession(ctx context.Context, actor access.Actor, classID string, v Verification) (*classes.ClassSession, error) {
	session, err := s.authorizedSession(ctx, actor, classID, users.RoleTutor)
	if err != nil {
		return nil, err
	}
	if session.Status != classes.StatusScheduled {
		return nil, errors.Wrapf(apperrors.ErrInvalidState, "[Service.StartSession] class is %s", session.Status)
	}

	now := s.nowTime().UTC()
	start := func(next *classes.ClassSession) {
		next.Status = classes.StatusInProgress
		next.VerificationDate = &now
		next.AttendanceToken = ""
	}

	var started *classes.ClassSession
	switch v.Channel {
	case ChannelCode:
		if !s.codes.Verify(v.Payload, session.ID, session.StudentID, session.TutorID, now) {
			s.logger.Debug().Str("class_id", classID).Msg("attendance code rejected")
			return nil, errors.Wrap(apperrors.ErrVerificationFailed, "[Service.StartSession] code mismatch")
		}
		started = session.Clone()
		start(started)
		if err := s.repos.Classes.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled}, started); err != nil {
			return nil, errors.Wrap(err, "[Service.StartSession] repo.CompareAndSwap")
		}

	case ChannelToken:
		started, err = s.tokens.Consume(ctx, session, v.Payload, start)
		if err != nil {
			s.logger.Debug().Str("class_id", classID).Err(err).Msg("attendance token rejected")
			return nil, errors.Wrap(err, "[Service.StartSession]")
		}

	default:
		return nil, errors.Wrapf(ErrUnknownChannel, "[Service.StartSession] %q", v.Channel)
	}

	s.logger.Info().
		Str("class_id", classID).
		Str("tutor_id", session.TutorID).
		Str("channel", string(v.Channel)).
		Msg("class started")
	s.publish(ctx, events.Event{
		Type:             events.ClassStarted,
		ClassID:          started.ID,
		TutorID:          started.TutorID,
		StudentID:        started.StudentID,
		Channel:          string(v.Channel),
		At:               now,
		HomeworkUnlocked: true,
		UploadsEnabled:   true,
	})
	return started, nil
}

// ConsumeToken is StartSession over the token channel.
func (s *Service) ConsumeToken(ctx context.Context, actor access.Actor, classID, supplied string) (*classes.ClassSession, error) {
	return s.StartSession(ctx, actor, classID, Verification{Channel: ChannelToken, Payload: supplied})
}

// EndSession completes a class that is in progress.
func (s *Service) EndSession(ctx context.Context, actor access.Actor, classID string) (*classes.ClassSession, error) {
	session, err := s.authorizedSession(ctx, actor, classID, users.RoleTutor)
	if err != nil {
		return nil, err
	}
	if session.Status != classes.StatusInProgress {
		return nil, errors.Wrapf(apperrors.ErrInvalidState, "[Service.EndSession] class is %s", session.Status)
	}

	now := s.nowTime().UTC()
	ended := session.Clone()
	ended.Status = classes.StatusCompleted
	ended.EndTime = &now
	if err := s.repos.Classes.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusInProgress}, ended); err != nil {
		return nil, errors.Wrap(err, "[Service.EndSession] repo.CompareAndSwap")
	}

	s.logger.Info().Str("class_id", classID).Str("tutor_id", session.TutorID).Msg("class completed")
	s.publish(ctx, events.Event{
		Type:      events.ClassCompleted,
		ClassID:   ended.ID,
		TutorID:   ended.TutorID,
		StudentID: ended.StudentID,
		At:        now,
	})
	return ended, nil
}

func (s *Service) load(ctx context.Context, classID string) (*classes.ClassSession, error) {
	session, err := s.repos.Classes.Get(ctx, classID)
	if err != nil {
		return nil, errors.Wrapf(err, "[Service] class %s", classID)
	}
	return session, nil
}

func (s *Service) authorizedSession(ctx context.Context, actor access.Actor, classID string, roles ...users.RoleType) (*classes.ClassSession, error) {
	session, err := s.load(ctx, classID)
	if err != nil {
		return nil, err
	}
	if err := s.access.RequireRole(actor, roles...); err != nil {
		return nil, err
	}
	if err := s.access.Authorize(ctx, actor, session); err != nil {
		return nil, err
	}
	return session, nil
}

// publish runs after the commit; a failed publish never undoes the transition.
func (s *Service) publish(ctx context.Context, event events.Event) {
	event.ID = uuid.New().String()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("class_id", event.ClassID).Str("event", string(event.Type)).Msg("failed to publish class event")
	}
}
