package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-class-attendance/attendance"
	apperrors "github.com/jrsteele09/go-class-attendance/internal/errors"
	"github.com/rs/zerolog"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	dayLayout       = "2006-01-02"
)

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type startClassRequest struct {
	Channel string `json:"channel" validate:"required,oneof=code token"`
	Payload string `json:"payload" validate:"required,max=256"`
}

type codeResponse struct {
	Code    string `json:"code"`
	ValidOn string `json:"valid_on"` // UTC date
}

type tokenResponse struct {
	Token string `json:"token"`
}

type verifyCodeResponse struct {
	Valid bool `json:"valid"`
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// PreflightHandler answers OPTIONS once CorsMiddleware has set the headers.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) GetClassHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		session, err := s.attendance.Get(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// ClassCodeHandler returns today's attendance code to the student (or guardian).
func (s *Server) ClassCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		code, day, err := s.attendance.ClassCode(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, codeResponse{
			Code:    code,
			ValidOn: day.Format(dayLayout),
		})
	}
}

// VerifyCodeHandler lets a participant check a code without starting the class.
func (s *Server) VerifyCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		classID := r.PathValue("id")

		var req verifyCodeRequest
		if err := s.decodeAndValidate(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if _, err := s.attendance.Get(r.Context(), actor, classID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		valid, err := s.attendance.VerifyCode(r.Context(), classID, req.Code)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, verifyCodeResponse{Valid: valid})
	}
}

// IssueTokenHandler hands the student side a fresh single-use token.
func (s *Server) IssueTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		tok, err := s.attendance.IssueToken(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, tokenResponse{Token: tok})
	}
}

func (s *Server) StartClassHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())

		var req startClassRequest
		if err := s.decodeAndValidate(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		session, err := s.attendance.StartSession(r.Context(), actor, r.PathValue("id"), attendance.Verification{
			Channel: attendance.Channel(req.Channel),
			Payload: req.Payload,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func (s *Server) EndClassHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		session, err := s.attendance.EndSession(r.Context(), actor, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// writeServiceError maps the error taxonomy onto HTTP. Forbidden is always reported the
// same way; internal errors are logged and not echoed.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", "forbidden")
	case apperrors.Is(err, apperrors.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "class not found")
	case apperrors.Is(err, apperrors.ErrConflict):
		writeJSONError(w, http.StatusConflict, "conflict", "class changed concurrently, reload and retry")
	case apperrors.Is(err, apperrors.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "invalid_state", "the class is not in a state that allows this operation")
	case apperrors.Is(err, apperrors.ErrTooManyAttempts):
		writeJSONError(w, http.StatusTooManyRequests, "too_many_attempts", "too many failed attempts, issue a new token")
	case apperrors.Is(err, apperrors.ErrVerificationFailed):
		writeJSONError(w, http.StatusUnprocessableEntity, "verification_failed", "verification failed")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeJSONError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
