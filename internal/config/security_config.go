package config

import (
	"time"

	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type SecurityConfig interface {
	GetCodeSecret() ([]byte, error)
	GetJWTSecret() ([]byte, error)
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetTokenBytes() int
	GetMaxTokenAttempts() int
	GetTokenAttemptWindow() time.Duration
	GetTokenLockout() (int, time.Duration, error)
}

const (
	codeSecretVar         = "CODE_SECRET"
	jwtSecretVar          = "JWT_SECRET"
	oidcIssuerVar         = "OIDC_ISSUER"
	oidcClientIDVar       = "OIDC_CLIENT_ID"
	tokenBytesVar         = "TOKEN_BYTES"
	maxTokenAttemptsVar   = "MAX_TOKEN_ATTEMPTS"
	tokenAttemptWindowVar = "TOKEN_ATTEMPT_WINDOW"
)

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetCodeSecret returns the shared secret keying the attendance codes.
// There is no fallback value: an unset secret is a configuration error.
func (s Security) GetCodeSecret() ([]byte, error) {
	secret := s.v.GetString(codeSecretVar)
	if secret == "" {
		return nil, errors.Wrap(apperrors.ErrConfiguration, codeSecretVar+" is not set")
	}
	return []byte(secret), nil
}

// GetJWTSecret returns the HS256 key for bearer tokens. It must be set and must differ
// from the code secret; one key never serves both purposes.
func (s Security) GetJWTSecret() ([]byte, error) {
	secret := s.v.GetString(jwtSecretVar)
	if secret == "" {
		return nil, errors.Wrap(apperrors.ErrConfiguration, jwtSecretVar+" is not set")
	}
	if secret == s.v.GetString(codeSecretVar) {
		return nil, errors.Wrap(apperrors.ErrConfiguration, jwtSecretVar+" must differ from "+codeSecretVar)
	}
	return []byte(secret), nil
}

func (s Security) GetOIDCIssuer() string {
	return s.v.GetString(oidcIssuerVar)
}

func (s Security) GetOIDCClientID() string {
	return s.v.GetString(oidcClientIDVar)
}

func (s Security) GetTokenBytes() int {
	return s.v.GetInt(tokenBytesVar) // 16 bytes = 128 bits
}

// GetMaxTokenAttempts is the number of failed token consumptions tolerated per class
// within the attempt window. Zero disables the lockout.
func (s Security) GetMaxTokenAttempts() int {
	return s.v.GetInt(maxTokenAttemptsVar)
}

func (s Security) GetTokenAttemptWindow() time.Duration {
	return s.v.GetDuration(tokenAttemptWindowVar)
}

// GetTokenLockout returns the attempt budget and its window. A zero budget disables the
// lockout; an enabled lockout needs a positive window.
func (s Security) GetTokenLockout() (int, time.Duration, error) {
	maxAttempts, window := s.GetMaxTokenAttempts(), s.GetTokenAttemptWindow()
	if maxAttempts <= 0 {
		return 0, 0, nil
	}
	if window <= 0 {
		return 0, 0, errors.Wrapf(apperrors.ErrConfiguration, "%s must be positive when %s is %d, got %s",
			tokenAttemptWindowVar, maxTokenAttemptsVar, maxAttempts, window)
	}
	return maxAttempts, window, nil
}
