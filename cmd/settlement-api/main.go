package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/api"
	"github.com/radieske/bet-settlement-platform/internal/jobs"
	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/db"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	queue := jobs.NewPostgresStore(pg)
	srv := api.NewServer(log, queue)
	srv.ListLimit = cfg.FailedHistoryMax

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	apiSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	log.Info("settlement-api listening", zap.String("addr", addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
