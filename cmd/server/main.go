package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/micropayments-ledger/internal/api"
	"github.com/sheikh-saqib/micropayments-ledger/internal/clock"
	"github.com/sheikh-saqib/micropayments-ledger/internal/config"
	"github.com/sheikh-saqib/micropayments-ledger/internal/diagnostics"
	"github.com/sheikh-saqib/micropayments-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/micropayments-ledger/internal/ledger"
	"github.com/sheikh-saqib/micropayments-ledger/internal/logging"
	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/redis"
	"github.com/sheikh-saqib/micropayments-ledger/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Storage.Backend).Fatal("open store")
	}
	defer store.Close()

	sink := diagnostics.Multi{diagnostics.NewLogSink(logging.Component(log, "diagnostics"))}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sink = append(sink, diagnostics.NewEventSink(publisher, logging.Component(log, "kafka")))
	}

	ledgerService := ledger.NewLedger(store,
		ledger.WithClock(clock.System{}),
		ledger.WithSink(sink),
		ledger.WithRetention(cfg.RetentionPolicy()),
		ledger.WithLogger(logging.Component(log, "ledger")),
	)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewHandler(ledgerService, logging.Component(log, "http")).Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":      cfg.HTTP.Addr,
			"backend":   cfg.Storage.Backend,
			"namespace": cfg.Storage.Namespace,
		}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (interfaces.KVStore, error) {
	ns := cfg.Storage.Namespace

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.NewMemoryKVStore(), nil
	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.Storage.SQLitePath, ns)
	case config.BackendPostgres:
		return postgres.Open(ctx, cfg.Storage.PostgresDSN, ns)
	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr: cfg.Storage.RedisAddr,
			DB:   cfg.Storage.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		return redis.NewRedisKVStore(rdb, ns), nil
	default:
		return nil, errors.Wrapf(config.ErrUnknownBackend, "%q", cfg.Storage.Backend)
	}
}
