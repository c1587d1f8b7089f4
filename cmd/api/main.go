package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/pointsarena/internal/api"
	"github.com/fastprodman/pointsarena/internal/events"
	"github.com/fastprodman/pointsarena/internal/events/kafkafeed"
	"github.com/fastprodman/pointsarena/internal/events/redisfeed"
	"github.com/fastprodman/pointsarena/internal/infra/logging"
	"github.com/fastprodman/pointsarena/internal/infra/metrics"
	"github.com/fastprodman/pointsarena/internal/infra/pgutils"
	"github.com/fastprodman/pointsarena/internal/services/ledger"
	"github.com/fastprodman/pointsarena/internal/services/rounds"
	"github.com/fastprodman/pointsarena/pkg/envconf"
	"github.com/fastprodman/pointsarena/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, slog.String("service", "pointsarena-api"))

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("postgres", shutdownqueue.Closer(dbConns))

	m := metrics.New(prometheus.DefaultRegisterer)

	// --- Event feed ---
	hub := events.NewHub(cfg.FeedBuffer)
	shutdownqueue.Add("event hub", func(context.Context) error {
		hub.Close()
		return nil
	})

	publisher, rdb, err := buildPublisher(ctx, cfg, hub, m)
	if err != nil {
		return err
	}

	// --- Services ---
	ledgerSvc := ledger.New(dbConns,
		ledger.WithTxTimeout(cfg.Postgres.TxTimeout),
		ledger.WithMetrics(m),
	)

	roundSvc := rounds.New(dbConns, ledgerSvc,
		rounds.WithTxTimeout(cfg.Postgres.TxTimeout),
		rounds.WithMetrics(m),
		rounds.WithPublisher(publisher),
		rounds.WithClientSeed(cfg.Rounds.ClientSeed),
		rounds.WithPublishTimeout(cfg.Rounds.PublishTimeout),
	)

	// --- Metrics server ---
	metricsSrv := metrics.StartServer(cfg.MetricsPort, prometheus.DefaultGatherer, func(ctx context.Context) error {
		err := dbConns.PingContext(ctx)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		if rdb != nil {
			err = rdb.Ping(ctx).Err()
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}

		return nil
	})
	shutdownqueue.Add("metrics server", metricsSrv.Shutdown)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewHandler(ledgerSvc, roundSvc, hub))

	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "metrics_port", cfg.MetricsPort,
		"redis", cfg.Redis.Enabled(), "kafka", cfg.Kafka.Enabled())

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// buildPublisher assembles the round engine's event sinks. With Redis the
// local hub is fed by the bridge only, so every node's websocket clients see
// each event exactly once.
func buildPublisher(ctx context.Context, cfg *apiConfig, hub *events.Hub, m *metrics.Metrics) (events.Publisher, *redis.Client, error) {
	var (
		sinks []events.Sink
		rdb   *redis.Client
	)

	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		shutdownqueue.Add("redis", shutdownqueue.Closer(rdb))

		err := rdb.Ping(ctx).Err()
		if err != nil {
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}

		bridgeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		shutdownqueue.Add("redis bridge", func(context.Context) error {
			cancel()
			return nil
		})

		bridge := redisfeed.NewBridge(rdb, cfg.Redis.Channel, hub)

		go func() {
			err := bridge.Run(bridgeCtx)
			if err != nil {
				slog.Error("redis event bridge stopped", logging.Err(err))
			}
		}()

		sinks = append(sinks, events.Sink{Name: "redis", Publisher: redisfeed.NewPublisher(rdb, cfg.Redis.Channel)})
	} else {
		sinks = append(sinks, events.Sink{Name: "hub", Publisher: hub})
	}

	if cfg.Kafka.Enabled() {
		kp := kafkafeed.NewPublisher(kafkafeed.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		shutdownqueue.Add("kafka writer", shutdownqueue.Closer(kp))

		sinks = append(sinks, events.Sink{Name: "kafka", Publisher: kp})
	}

	return events.NewFanout(m, sinks...), rdb, nil
}
