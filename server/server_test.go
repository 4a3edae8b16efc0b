package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/jrsteele09/go-class-attendance/attendance"
	"github.com/jrsteele09/go-class-attendance/authn"
	"github.com/jrsteele09/go-class-attendance/classes"
	classrepofakes "github.com/jrsteele09/go-class-attendance/classes/repofakes"
	"github.com/jrsteele09/go-class-attendance/daycode"
	"github.com/jrsteele09/go-class-attendance/internal/config"
	"github.com/jrsteele09/go-class-attendance/server"
	"github.com/jrsteele09/go-class-attendance/token"
	"github.com/jrsteele09/go-class-attendance/users"
	fakeuserrepo "github.com/jrsteele09/go-class-attendance/users/repofake"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "https://app.example.com"

type corsConfig struct{}

func (corsConfig) GetAllowedOrigins() config.AllowedOrigins {
	return config.AllowedOrigins{allowedOrigin: {}}
}
func (corsConfig) GetAllowedMethods() string { return "GET, POST, OPTIONS" }
func (corsConfig) GetAllowedHeaders() string { return "Content-Type, Authorization" }

type testFixture struct {
	handler   http.Handler
	classRepo *classrepofakes.FakeClassRepo
	tokens    *authn.HMACAuthenticator
	dev       *server.DevFixtures
}

func setupTestFixture(t *testing.T, tokenOptions ...token.IssuerOption) *testFixture {
	t.Helper()
	ctx := context.Background()

	classRepo := classrepofakes.NewFakeClassRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()
	tokens, err := authn.NewHMACAuthenticator([]byte("jwt-secret"), "")
	require.NoError(t, err)

	dev, err := server.BootstrapDevData(ctx, classRepo, userRepo, tokens)
	require.NoError(t, err)

	deriver, err := daycode.NewDeriver([]byte("code-secret"))
	require.NoError(t, err)
	issuer, err := token.NewIssuer(classRepo, tokenOptions...)
	require.NoError(t, err)
	resolver, err := access.NewResolver(userRepo)
	require.NoError(t, err)
	service, err := attendance.NewService(attendance.Repos{Classes: classRepo}, deriver, issuer, resolver)
	require.NoError(t, err)

	s, err := server.New("TEST", corsConfig{}, service, tokens)
	require.NoError(t, err)

	return &testFixture{handler: s, classRepo: classRepo, tokens: tokens, dev: dev}
}

func (f *testFixture) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func classPath(suffix string) string {
	return "/api/classes/" + server.DevClassID + suffix
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequireAuth(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, classPath(""), "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, classPath(""), "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, classPath(""), f.dev.StudentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClass_HidesToken(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, classPath("/token"), f.dev.StudentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	tok := decode[map[string]string](t, rec)["token"]
	require.NotEmpty(t, tok)

	rec = f.do(t, http.MethodGet, classPath(""), f.dev.TutorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), tok)
	require.Equal(t, "SCHEDULED", decode[map[string]interface{}](t, rec)["status"])
}

func TestCodeFlow(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, classPath("/code"), f.dev.TutorToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, classPath("/code"), f.dev.ParentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body := decode[map[string]string](t, rec)
	code := body["code"]
	require.Len(t, code, daycode.CodeLength)
	_, err := time.Parse("2006-01-02", body["valid_on"])
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, classPath("/code/verify"), f.dev.TutorToken, map[string]string{"code": strings.ToLower(code)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decode[map[string]bool](t, rec)["valid"])

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "code", "payload": "000000"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "code", "payload": code})
	require.Equal(t, http.StatusOK, rec.Code)
	started := decode[map[string]interface{}](t, rec)
	require.Equal(t, "IN_PROGRESS", started["status"])
	require.NotEmpty(t, started["verification_date"])

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "code", "payload": code})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/end"), f.dev.TutorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "COMPLETED", decode[map[string]interface{}](t, rec)["status"])

	rec = f.do(t, http.MethodPost, classPath("/end"), f.dev.TutorToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestTokenFlow(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, classPath("/token"), f.dev.TutorToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/token"), f.dev.StudentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	tok := decode[map[string]string](t, rec)["token"]

	// The student cannot start the class with their own token.
	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.StudentToken, map[string]string{"channel": "token", "payload": tok})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "token", "payload": "deadbeef"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "token", "payload": tok})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.classRepo.Get(context.Background(), server.DevClassID)
	require.NoError(t, err)
	require.Equal(t, classes.StatusInProgress, stored.Status)
	require.Empty(t, stored.AttendanceToken)
}

func TestTokenLockout(t *testing.T) {
	f := setupTestFixture(t, token.WithAttemptLimiter(token.NewInMemoryAttemptLimiter(1, time.Minute)))

	rec := f.do(t, http.MethodPost, classPath("/token"), f.dev.StudentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	tok := decode[map[string]string](t, rec)["token"]

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "token", "payload": "deadbeef"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, map[string]string{"channel": "token", "payload": tok})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestBadRequests(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{name: "unknown channel", body: map[string]string{"channel": "qr", "payload": "x"}},
		{name: "missing payload", body: map[string]string{"channel": "code"}},
		{name: "unknown field", body: map[string]string{"channel": "code", "payload": "x", "actor": "dev-tutor"}},
		{name: "not json", body: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, classPath("/start"), f.dev.TutorToken, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestNotFoundAndForbidden(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, "/api/classes/missing", f.dev.TutorToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	stranger, err := f.tokens.CreateToken(access.Actor{ID: "someone", Role: users.RoleStudent}, time.Hour)
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, classPath(""), stranger, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", decode[map[string]string](t, rec)["error"])
}

func TestCors(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, classPath("/start"), nil)
	req.Header.Set("Origin", allowedOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, classPath("/start"), nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
