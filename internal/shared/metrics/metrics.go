package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Métricas compartilhadas do pipeline de liquidação.
var (
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_jobs_processed_total",
		Help: "Jobs processados por tipo e resultado (done|deferred|retried|failed)",
	}, []string{"type", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_job_duration_seconds",
		Help:    "Duração de execução de cada job",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_bets_settled_total",
		Help: "Apostas liquidadas por resultado (WON|LOST|PUSH)",
	}, []string{"result"})

	GamesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_games_finished_total",
		Help: "Jogos marcados como encerrados pelo reconciliador",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "settlement_queue_depth",
		Help: "Quantidade de jobs por estado na fila",
	}, []string{"status"})

	ScoreUpdatesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_score_updates_consumed_total",
		Help: "Mensagens de placar consumidas do Kafka",
	})
)
