package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/radieske/bet-settlement-platform/internal/scorefeed"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
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

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	publisher := scorefeed.NewKafkaPublisher(brokers, cfg.TopicScoreUpdates, log)
	defer publisher.Close()

	client := &scorefeed.WSClient{
		URL:       cfg.ProviderWSURL,
		Log:       log,
		Publisher: publisher,
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("score-ingest-worker started")
	client.Start(ctx)
	log.Info("score-ingest-worker stopped")
}
