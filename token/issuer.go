package token

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/jrsteele09/go-class-attendance/classes"
	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/pkg/errors"
)

// MinTokenBytes is the smallest accepted token size (128 bits of entropy).
const MinTokenBytes = 16

var (
	ErrInvalidState       = apperrors.ErrInvalidState
	ErrVerificationFailed = apperrors.ErrVerificationFailed
	ErrTooManyAttempts    = apperrors.ErrTooManyAttempts

	// ErrNoLiveToken is a verification failure: nothing was issued or it was already used.
	ErrNoLiveToken = errors.Wrap(apperrors.ErrVerificationFailed, "no live attendance token")
)

// Transition is applied to the copy of the session that will be committed together with
// the token being cleared.
type Transition func(next *classes.ClassSession)

// Issuer hands out single-use attendance tokens and stores them on the class session.
// At most one token per session is live at a time.
type Issuer struct {
	repo       classes.Repo
	tokenBytes int
	limiter    AttemptLimiter
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithTokenBytes sets the number of random bytes per token (hex rendered, so the token
// string is twice as long).
func WithTokenBytes(n int) IssuerOption {
	return func(i *Issuer) {
		i.tokenBytes = n
	}
}

// WithAttemptLimiter enables the lockout of token consumption after repeated mismatches.
func WithAttemptLimiter(limiter AttemptLimiter) IssuerOption {
	return func(i *Issuer) {
		i.limiter = limiter
	}
}

func NewIssuer(repo classes.Repo, options ...IssuerOption) (*Issuer, error) {
	if repo == nil {
		return nil, errors.New("[NewIssuer] class repo is required")
	}
	i := &Issuer{
		repo:       repo,
		tokenBytes: MinTokenBytes,
	}
	for _, opt := range options {
		opt(i)
	}
	if i.tokenBytes < MinTokenBytes {
		return nil, errors.Wrapf(apperrors.ErrConfiguration, "[NewIssuer] token length %d bytes is below %d", i.tokenBytes, MinTokenBytes)
	}
	return i, nil
}

// Issue generates a new token for a scheduled class, replacing any unconsumed one.
func (i *Issuer) Issue(ctx context.Context, classID string) (string, error) {
	session, err := i.repo.Get(ctx, classID)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] repo.Get")
	}
	if session.Status != classes.StatusScheduled {
		return "", errors.Wrapf(ErrInvalidState, "[Issuer.Issue] class is %s", session.Status)
	}

	tokenBytes := make([]byte, i.tokenBytes)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] rand.Read")
	}
	token := hex.EncodeToString(tokenBytes)

	next := session.Clone()
	next.AttendanceToken = token
	if err := i.repo.CompareAndSwap(ctx, classes.Precondition{Status: classes.StatusScheduled}, next); err != nil {
		return "", errors.Wrap(err, "[Issuer.Issue] repo.CompareAndSwap")
	}

	// A fresh token starts with a clean attempt budget.
	if i.limiter != nil {
		if err := i.limiter.Reset(ctx, classID); err != nil {
			return "", errors.Wrap(err, "[Issuer.Issue] limiter.Reset")
		}
	}
	return token, nil
}

// Consume checks supplied against the live token of session. On a match the token is
// cleared and transition applied in a single compare-and-set, conditioned on both the
// status and the exact token that was matched. On a mismatch nothing is written and the
// token stays live.
func (i *Issuer) Consume(ctx context.Context, session *classes.ClassSession, supplied string, transition Transition) (*classes.ClassSession, error) {
	if session.Status != classes.StatusScheduled {
		return nil, errors.Wrapf(ErrInvalidState, "[Issuer.Consume] class is %s", session.Status)
	}

	if i.limiter != nil {
		locked, err := i.limiter.Locked(ctx, session.ID)
		if err != nil {
			return nil, errors.Wrap(err, "[Issuer.Consume] limiter.Locked")
		}
		if locked {
			return nil, errors.Wrap(ErrTooManyAttempts, "[Issuer.Consume]")
		}
	}

	if !session.HasLiveToken() {
		return nil, ErrNoLiveToken
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(session.AttendanceToken)) != 1 {
		if i.limiter != nil {
			if err := i.limiter.Fail(ctx, session.ID); err != nil {
				return nil, errors.Wrap(err, "[Issuer.Consume] limiter.Fail")
			}
		}
		return nil, errors.Wrap(ErrVerificationFailed, "[Issuer.Consume] token mismatch")
	}

	next := session.Clone()
	next.AttendanceToken = ""
	if transition != nil {
		transition(next)
	}

	matched := session.AttendanceToken
	cond := classes.Precondition{Status: session.Status, AttendanceToken: &matched}
	if err := i.repo.CompareAndSwap(ctx, cond, next); err != nil {
		return nil, errors.Wrap(err, "[Issuer.Consume] repo.CompareAndSwap")
	}

	if i.limiter != nil {
		if err := i.limiter.Reset(ctx, session.ID); err != nil {
			return nil, errors.Wrap(err, "[Issuer.Consume] limiter.Reset")
		}
	}
	return next, nil
}
