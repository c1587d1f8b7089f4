package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`

	// TxTimeout bounds every ledger and settlement transaction.
	TxTimeout time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

// RedisConfig enables the cross-node event feed. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Channel  string `env:"REDIS_CHANNEL" envDefault:"pointsarena.events"`
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig enables the downstream event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:""`
	Topic   string `env:"KAFKA_TOPIC" envDefault:"pointsarena.rounds"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type RoundConfig struct {
	ClientSeed string `env:"ROUND_CLIENT_SEED" envDefault:"POINTS_ARENA_V1"`

	// PublishTimeout bounds the delivery of one round or bet event.
	PublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" envDefault:"2s"`
}
