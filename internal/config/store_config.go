package config

import "github.com/spf13/viper"

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetDatabaseURL() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type BrokerConfig interface {
	GetAMQPURL() string
	GetEventsExchange() string
}

const (
	storeDriverVar   = "STORE_DRIVER"
	databaseURLVar   = "DATABASE_URL"
	redisAddrVar     = "REDIS_ADDR"
	redisPasswordVar = "REDIS_PASSWORD"
	redisDBVar       = "REDIS_DB"

	amqpURLVar        = "AMQP_URL"
	eventsExchangeVar = "EVENTS_EXCHANGE"
)

type Store struct {
	v *viper.Viper
}

var _ StoreConfig = Store{}

func (s Store) GetStoreDriver() string {
	return s.v.GetString(storeDriverVar)
}

func (s Store) GetDatabaseURL() string {
	return s.v.GetString(databaseURLVar)
}

// GetRedisAddr returns host:port of the Redis used for token attempt counting.
// Empty keeps the counters in process memory.
func (s Store) GetRedisAddr() string {
	return s.v.GetString(redisAddrVar)
}

func (s Store) GetRedisPassword() string {
	return s.v.GetString(redisPasswordVar)
}

func (s Store) GetRedisDB() int {
	return s.v.GetInt(redisDBVar)
}

type Broker struct {
	v *viper.Viper
}

var _ BrokerConfig = Broker{}

// GetAMQPURL returns the broker URL for lifecycle events. Empty disables publishing.
func (b Broker) GetAMQPURL() string {
	return b.v.GetString(amqpURLVar)
}

func (b Broker) GetEventsExchange() string {
	return b.v.GetString(eventsExchangeVar)
}
