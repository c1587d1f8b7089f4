package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/pointsarena/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort     string        `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	FeedBuffer      int           `env:"FEED_BUFFER" envDefault:"64"`

	Postgres config.PostgresConfig
	Redis    config.RedisConfig
	Kafka    config.KafkaConfig
	Rounds   config.RoundConfig
}
