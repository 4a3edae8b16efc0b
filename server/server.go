package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-class-attendance/attendance"
	"github.com/jrsteele09/go-class-attendance/authn"
	"github.com/jrsteele09/go-class-attendance/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.CorsConfig
	attendance    *attendance.Service
	authenticator authn.Authenticator
	validate      *validator.Validate
}

func New(env string, cors config.CorsConfig, service *attendance.Service, authenticator authn.Authenticator) (*Server, error) {
	if service == nil {
		return nil, errors.New("[Server New] attendance service is required")
	}
	if authenticator == nil {
		return nil, errors.New("[Server New] authenticator is required")
	}

	s := &Server{
		env:           env,
		mux:           http.NewServeMux(),
		config:        cors,
		attendance:    service,
		authenticator: authenticator,
		validate:      newValidator(),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
