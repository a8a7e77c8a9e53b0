package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/jobs"
	"github.com/radieske/bet-settlement-platform/internal/provider"
	"github.com/radieske/bet-settlement-platform/internal/reconciler"
	"github.com/radieske/bet-settlement-platform/internal/repo"
	"github.com/radieske/bet-settlement-platform/internal/settlement"
	"github.com/radieske/bet-settlement-platform/internal/shared/cache"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/db"
	skafka "github.com/radieske/bet-settlement-platform/internal/shared/kafka"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer writer.Close()

	repository := repo.NewPostgres(pg)
	prov := provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	producer := settlement.NewProducer(writer, rdb, cfg.RedisPubSubChannel)

	settler := settlement.New(log, repository, prov, producer)
	settler.DeferUnresolvedGameProps = cfg.GamePropPolicy == "defer"

	rec := reconciler.New(log, repository, prov, settler, cfg.SyncWindow, cfg.StuckTimeout)

	queue := jobs.NewPostgresStore(pg)
	handlers := jobs.NewHandlers(log, settler, rec, queue, cfg.JobRetention, cfg.VisibilityTimeout)
	worker := jobs.NewWorker(log, queue, handlers.Map(), cfg.WorkerConcurrency, cfg.WorkerRatePerSec, cfg.BackoffBase)
	scheduler := jobs.NewScheduler(log, queue, cfg.SyncInterval, cfg.CleanupInterval)
	scheduler.MaxAttempts = cfg.JobMaxAttempts

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("settlement-worker started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()
	wg.Wait()

	log.Info("settlement-worker stopped")
}
