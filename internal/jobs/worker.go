package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
)

// Worker consome a fila com um pool de goroutines e um limitador de
// taxa global (protege o provedor externo de rajadas de sync).
type Worker struct {
	log          *zap.Logger
	store        Store
	handlers     map[Type]Handler
	concurrency  int
	limiter      *rate.Limiter
	pollInterval time.Duration
	backoffBase  time.Duration
}

func NewWorker(log *zap.Logger, store Store, handlers map[Type]Handler, concurrency, ratePerSec int, backoffBase time.Duration) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		log:          log,
		store:        store,
		handlers:     handlers,
		concurrency:  concurrency,
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		pollInterval: time.Second,
		backoffBase:  backoffBase,
	}
}

// Run bloqueia até o contexto ser cancelado.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("Job worker started", zap.Int("concurrency", w.concurrency))

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reportDepth(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	w.log.Info("Job worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		job, err := w.store.Claim(ctx)
		if err == ErrNoJob {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}
		if err != nil {
			w.log.Error("Failed to claim job", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.execute(ctx, job)
	}
}

func (w *Worker) execute(ctx context.Context, job *Job) {
	start := time.Now()
	handler, ok := w.handlers[job.Type]
	if !ok {
		w.log.Error("No handler registered for job type", zap.String("type", string(job.Type)))
		if err := w.store.Fail(ctx, job.ID, fmt.Sprintf("no handler for type %s", job.Type)); err != nil {
			w.log.Error("Failed to mark job as failed", zap.Error(err))
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		return
	}

	result, err := handler(ctx, job)
	elapsed := time.Since(start)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(elapsed.Seconds())

	if err != nil {
		w.handleFailure(ctx, job, err)
		return
	}

	if cerr := w.store.Complete(ctx, job.ID); cerr != nil {
		w.log.Error("Failed to complete job", zap.String("job_id", job.ID), zap.Error(cerr))
		return
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), result.String()).Inc()
	w.log.Info("Job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("result", result.String()),
		zap.Duration("elapsed", elapsed))
}

func (w *Worker) handleFailure(ctx context.Context, job *Job, jobErr error) {
	if job.Attempts >= job.MaxAttempts {
		w.log.Error("Job exhausted attempts, moving to failed history",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("attempts", job.Attempts),
			zap.Error(jobErr))
		if err := w.store.Fail(ctx, job.ID, jobErr.Error()); err != nil {
			w.log.Error("Failed to mark job as failed", zap.Error(err))
		}
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "failed").Inc()
		return
	}

	delay := Backoff(w.backoffBase, job.Attempts)
	w.log.Warn("Job failed, scheduling retry",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("attempt", job.Attempts),
		zap.Duration("retry_in", delay),
		zap.Error(jobErr))
	if err := w.store.RetryLater(ctx, job.ID, time.Now().Add(delay), jobErr.Error()); err != nil {
		w.log.Error("Failed to schedule retry", zap.Error(err))
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "retried").Inc()
}

// reportDepth exporta a profundidade da fila por status.
func (w *Worker) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := w.store.Stats(ctx)
			if err != nil {
				w.log.Warn("Failed to read queue stats", zap.Error(err))
				continue
			}
			for _, st := range []Status{StatusWaiting, StatusActive, StatusCompleted, StatusFailed} {
				metrics.QueueDepth.WithLabelValues(string(st)).Set(float64(stats[st]))
			}
		}
	}
}
