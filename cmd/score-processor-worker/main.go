package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/jobs"
	"github.com/radieske/bet-settlement-platform/internal/provider"
	"github.com/radieske/bet-settlement-platform/internal/reconciler"
	"github.com/radieske/bet-settlement-platform/internal/repo"
	"github.com/radieske/bet-settlement-platform/internal/scorefeed"
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

	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicScoreUpdates, "score-processor")
	defer reader.Close()
	dlq := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicScoreUpdatesDLQ)
	defer dlq.Close()

	repository := repo.NewPostgres(pg)
	prov := provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderTimeout)

	// o processor só aplica placares e enfileira; a liquidação em si roda
	// no settlement-worker, mas o reconciliador exige o settler completo
	settler := settlement.New(log, repository, prov, nil)
	settler.DeferUnresolvedGameProps = cfg.GamePropPolicy == "defer"
	rec := reconciler.New(log, repository, prov, settler, cfg.SyncWindow, cfg.StuckTimeout)

	proc := &scorefeed.Processor{
		Log:     log,
		Reader:  reader,
		DLQ:     dlq,
		Cache:   scorefeed.NewScoreCache(rdb, time.Hour),
		Applier: rec,
		Queue:   jobs.NewPostgresStore(pg),
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("score-processor-worker started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("score-processor-worker stopped")
}
