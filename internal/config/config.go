package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	StoreConfig
	BrokerConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Store
	Broker
}

// New loads an optional dotenv file (DOTENV_PATH, default ".env") and returns a Config
// that reads the process environment on every call.
func New() (Config, error) {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return nil, errors.Wrapf(err, "[config.New] godotenv.Load(%s)", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "[config.New] os.Stat(%s)", path)
	}

	v := newViper()
	return mainConfig{
		EnvVars:  EnvVars{v: v},
		Cors:     Cors{v: v},
		Security: Security{v: v},
		Store:    Store{v: v},
		Broker:   Broker{v: v},
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault(portEnvVar, "8080")
	v.SetDefault(appNameVar, "Class Attendance")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")

	v.SetDefault(corsOriginsVar, "")

	v.SetDefault(codeSecretVar, "")
	v.SetDefault(jwtSecretVar, "")
	v.SetDefault(oidcIssuerVar, "")
	v.SetDefault(oidcClientIDVar, "")
	v.SetDefault(tokenBytesVar, 16)
	v.SetDefault(maxTokenAttemptsVar, 5)
	v.SetDefault(tokenAttemptWindowVar, 15*time.Minute)

	v.SetDefault(storeDriverVar, StoreDriverMemory)
	v.SetDefault(databaseURLVar, "")
	v.SetDefault(redisAddrVar, "")
	v.SetDefault(redisPasswordVar, "")
	v.SetDefault(redisDBVar, 0)

	v.SetDefault(amqpURLVar, "")
	v.SetDefault(eventsExchangeVar, "class.events")

	v.AutomaticEnv()
	return v
}

const (
	portEnvVar  = "PORT"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portEnvVar)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

// GetEnv returns DEV (default), TEST, QA or PROD.
func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.v.GetString(envVar))
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelVar)
}

const corsOriginsVar = "CORS_ORIGINS"

type Cors struct {
	v *viper.Viper
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins parses the comma separated CORS_ORIGINS list.
func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range strings.Split(c.v.GetString(corsOriginsVar), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
