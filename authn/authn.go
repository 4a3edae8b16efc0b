package authn

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/jrsteele09/go-class-attendance/users"
	"github.com/pkg/errors"
)

// ErrUnauthenticated is returned for any bearer token that cannot be trusted.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator turns a bearer token into the calling actor. The actor's role comes from
// the token's "role" claim and its id from "sub".
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (access.Actor, error)
}

// Claims are the bearer token claims this service reads.
type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// HMACAuthenticator verifies HS256 tokens signed with a shared secret.
type HMACAuthenticator struct {
	secret  []byte
	issuer  string
	nowFunc func() time.Time
}

var _ Authenticator = (*HMACAuthenticator)(nil)

// NewHMACAuthenticator requires a non-empty secret. issuer, when set, is both stamped on
// created tokens and required on verified ones.
func NewHMACAuthenticator(secret []byte, issuer string) (*HMACAuthenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("[NewHMACAuthenticator] secret is required")
	}
	return &HMACAuthenticator{secret: secret, issuer: issuer, nowFunc: time.Now}, nil
}

// WithNowFunc replaces the clock used for expiry checks (tests).
func (a *HMACAuthenticator) WithNowFunc(now func() time.Time) *HMACAuthenticator {
	a.nowFunc = now
	return a
}

func (a *HMACAuthenticator) Authenticate(_ context.Context, rawToken string) (access.Actor, error) {
	options := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(a.nowFunc),
	}
	if a.issuer != "" {
		options = append(options, jwtlib.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwtlib.ParseWithClaims(rawToken, &claims, func(*jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, options...)
	if err != nil {
		return access.Actor{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return actorFromClaims(claims.Subject, claims.Role)
}

// CreateToken signs a token for actor, used for development and tests.
func (a *HMACAuthenticator) CreateToken(actor access.Actor, ttl time.Duration) (string, error) {
	now := a.nowFunc()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   actor.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "[HMACAuthenticator.CreateToken]")
	}
	return signed, nil
}

// OIDCAuthenticator verifies ID tokens from an external OpenID Connect provider.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

var _ Authenticator = (*OIDCAuthenticator)(nil)

// NewOIDCAuthenticator discovers the provider's keys from issuer.
func NewOIDCAuthenticator(ctx context.Context, issuer, clientID string) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewOIDCAuthenticator] provider %s", issuer)
	}
	return NewOIDCAuthenticatorWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCAuthenticatorWithVerifier(verifier *oidc.IDTokenVerifier) *OIDCAuthenticator {
	return &OIDCAuthenticator{verifier: verifier}
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, rawToken string) (access.Actor, error) {
	idToken, err := a.verifier.Verify(ctx, rawToken)
	if err != nil {
		return access.Actor{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	var claims struct {
		Role string `json:"role"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return access.Actor{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return actorFromClaims(idToken.Subject, claims.Role)
}

func actorFromClaims(subject, role string) (access.Actor, error) {
	if subject == "" {
		return access.Actor{}, errors.Wrap(ErrUnauthenticated, "token has no subject")
	}
	roleType, err := users.ParseRole(role)
	if err != nil {
		return access.Actor{}, errors.Wrap(ErrUnauthenticated, err.Error())
	}
	return access.Actor{ID: subject, Role: roleType}, nil
}
