package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-class-attendance/access"
	"github.com/jrsteele09/go-class-attendance/attendance"
	"github.com/jrsteele09/go-class-attendance/authn"
	"github.com/jrsteele09/go-class-attendance/classes"
	classrepofakes "github.com/jrsteele09/go-class-attendance/classes/repofakes"
	"github.com/jrsteele09/go-class-attendance/daycode"
	"github.com/jrsteele09/go-class-attendance/events"
	"github.com/jrsteele09/go-class-attendance/internal/config"
	"github.com/jrsteele09/go-class-attendance/server"
	"github.com/jrsteele09/go-class-attendance/storage/postgres"
	"github.com/jrsteele09/go-class-attendance/token"
	"github.com/jrsteele09/go-class-attendance/token/redislimiter"
	"github.com/jrsteele09/go-class-attendance/users"
	fakeuserrepo "github.com/jrsteele09/go-class-attendance/users/repofake"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := wire(ctx, c)
	if err != nil {
		return err
	}
	defer app.close()

	server := &http.Server{Addr: c.GetPort(), Handler: app.handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

type application struct {
	handler http.Handler
	closers []io.Closer
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// wire builds the attendance service and its HTTP front from configuration.
func wire(ctx context.Context, c config.Config) (*application, error) {
	app := &application{}

	secret, err := c.GetCodeSecret()
	if err != nil {
		return nil, err
	}
	deriver, err := daycode.NewDeriver(secret)
	if err != nil {
		return nil, errors.Wrap(err, "[wire] daycode.NewDeriver")
	}

	classRepo, userRepo, err := openStore(ctx, c, app)
	if err != nil {
		return nil, err
	}

	issuerOptions := []token.IssuerOption{token.WithTokenBytes(c.GetTokenBytes())}
	limiter, err := attemptLimiter(ctx, c, app)
	if err != nil {
		return nil, err
	}
	if limiter != nil {
		issuerOptions = append(issuerOptions, token.WithAttemptLimiter(limiter))
	}
	issuer, err := token.NewIssuer(classRepo, issuerOptions...)
	if err != nil {
		return nil, err
	}

	resolver, err := access.NewResolver(userRepo, access.WithLogger(log.Logger.With().Str("component", "access").Logger()))
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if url := c.GetAMQPURL(); url != "" {
		amqpPublisher, err := events.NewAMQPPublisher(url, c.GetEventsExchange())
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closerFunc(func() error { amqpPublisher.Close(); return nil }))
		publisher = amqpPublisher
		log.Info().Str("exchange", c.GetEventsExchange()).Msg("Publishing class events")
	}

	svc, err := attendance.NewService(
		attendance.Repos{Classes: classRepo},
		deriver,
		issuer,
		resolver,
		attendance.WithLogger(log.Logger.With().Str("component", "attendance").Logger()),
		attendance.WithPublisher(publisher),
	)
	if err != nil {
		return nil, err
	}

	authenticator, err := newAuthenticator(ctx, c)
	if err != nil {
		return nil, err
	}
	if hmacAuth, ok := authenticator.(*authn.HMACAuthenticator); ok && c.GetEnv() == "DEV" {
		if _, err := server.BootstrapDevData(ctx, classRepo, userRepo, hmacAuth); err != nil {
			return nil, err
		}
	}

	handler, err := server.New(c.GetEnv(), c, svc, authenticator)
	if err != nil {
		return nil, err
	}
	app.handler = handler
	return app, nil
}

func openStore(ctx context.Context, c config.Config, app *application) (classes.Repo, users.Repo, error) {
	switch c.GetStoreDriver() {
	case config.StoreDriverPostgres:
		db, err := postgres.Open(ctx, c.GetDatabaseURL())
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, db)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, nil, err
		}
		return postgres.NewClassRepo(db), postgres.NewUserRepo(db), nil
	case config.StoreDriverMemory, "":
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return classrepofakes.NewFakeClassRepo(), fakeuserrepo.NewFakeUserRepo(), nil
	default:
		return nil, nil, errors.Errorf("[openStore] unknown store driver %q", c.GetStoreDriver())
	}
}

// attemptLimiter returns nil when the lockout is disabled.
func attemptLimiter(ctx context.Context, c config.Config, app *application) (token.AttemptLimiter, error) {
	maxAttempts, window, err := c.GetTokenLockout()
	if err != nil {
		return nil, err
	}
	if maxAttempts == 0 {
		return nil, nil
	}

	if addr := c.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: c.GetRedisPassword(), DB: c.GetRedisDB()})
		app.closers = append(app.closers, client)
		log.Info().Str("addr", addr).Msg("Token attempts counted in Redis")
		return redislimiter.New(client, maxAttempts, window), nil
	}

	limiter := token.NewInMemoryAttemptLimiter(maxAttempts, window)
	go func() {
		ticker := time.NewTicker(window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()
	return limiter, nil
}

func newAuthenticator(ctx context.Context, c config.Config) (authn.Authenticator, error) {
	if issuer := c.GetOIDCIssuer(); issuer != "" {
		log.Info().Str("issuer", issuer).Msg("Authenticating with OIDC")
		return authn.NewOIDCAuthenticator(ctx, issuer, c.GetOIDCClientID())
	}
	secret, err := c.GetJWTSecret()
	if err != nil {
		return nil, err
	}
	return authn.NewHMACAuthenticator(secret, c.GetAppName())
}

func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
