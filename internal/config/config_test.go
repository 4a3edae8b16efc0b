package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-class-attendance/internal/config"
	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	c, err := config.New()
	require.NoError(t, err)
	return c
}

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("CODE_SECRET", "")
	c := newConfig(t)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, config.StoreDriverMemory, c.GetStoreDriver())
	require.Equal(t, 16, c.GetTokenBytes())
	require.Equal(t, 5, c.GetMaxTokenAttempts())
	require.Equal(t, 15*time.Minute, c.GetTokenAttemptWindow())
	require.Equal(t, "class.events", c.GetEventsExchange())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestConfig_CodeSecretRequired(t *testing.T) {
	t.Setenv("CODE_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	c := newConfig(t)

	_, err := c.GetCodeSecret()
	require.Error(t, err)
	require.True(t, apperrors.Is(err, apperrors.ErrConfiguration))

	t.Setenv("CODE_SECRET", "s3cret")
	secret, err := c.GetCodeSecret()
	require.NoError(t, err)
	require.Equal(t, []byte("s3cret"), secret)
}

func TestConfig_JWTSecret(t *testing.T) {
	t.Setenv("CODE_SECRET", "s3cret")
	t.Setenv("JWT_SECRET", "")
	c := newConfig(t)

	// No fallback to the code secret.
	_, err := c.GetJWTSecret()
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = c.GetJWTSecret()
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	t.Setenv("JWT_SECRET", "jwt")
	secret, err := c.GetJWTSecret()
	require.NoError(t, err)
	require.Equal(t, []byte("jwt"), secret)
}

func TestConfig_TokenLockout(t *testing.T) {
	c := newConfig(t)

	maxAttempts, window, err := c.GetTokenLockout()
	require.NoError(t, err)
	require.Equal(t, 5, maxAttempts)
	require.Equal(t, 15*time.Minute, window)

	tests := []struct {
		name        string
		maxAttempts string
		window      string
		wantErr     bool
		wantMax     int
	}{
		{name: "zero window", maxAttempts: "3", window: "0s", wantErr: true},
		{name: "negative window", maxAttempts: "3", window: "-1m", wantErr: true},
		{name: "unparseable window", maxAttempts: "3", window: "soon", wantErr: true},
		{name: "disabled ignores window", maxAttempts: "0", window: "0s", wantMax: 0},
		{name: "valid", maxAttempts: "3", window: "30s", wantMax: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAX_TOKEN_ATTEMPTS", tt.maxAttempts)
			t.Setenv("TOKEN_ATTEMPT_WINDOW", tt.window)

			maxAttempts, _, err := c.GetTokenLockout()
			if tt.wantErr {
				require.ErrorIs(t, err, apperrors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantMax, maxAttempts)
		})
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	c := newConfig(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("ENV", "prod")
	t.Setenv("TOKEN_ATTEMPT_WINDOW", "2m")
	t.Setenv("MAX_TOKEN_ATTEMPTS", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, 2*time.Minute, c.GetTokenAttemptWindow())
	require.Equal(t, 3, c.GetMaxTokenAttempts())

	origins := c.GetAllowedOrigins()
	require.Len(t, origins, 2)
	require.True(t, origins.IsAllowedOrigin("https://a.example"))
	require.True(t, origins.IsAllowedOrigin("https://b.example"))
}

func TestConfig_LoadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=From Dotenv\n"), 0o600))
	t.Setenv("DOTENV_PATH", path)
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	c, err := config.New()
	require.NoError(t, err)
	require.Equal(t, "From Dotenv", c.GetAppName())
}
