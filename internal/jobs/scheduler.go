package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler enfileira os jobs periódicos. A deduplicação do Store garante
// que um tick novo não empilha trabalho se o ciclo anterior ainda roda.
type Scheduler struct {
	log          *zap.Logger
	store        Store
	SyncEvery    time.Duration
	CleanupEvery time.Duration
	MaxAttempts  int // zero usa o default do store
}

func NewScheduler(log *zap.Logger, store Store, syncEvery, cleanupEvery time.Duration) *Scheduler {
	return &Scheduler{
		log:          log,
		store:        store,
		SyncEvery:    syncEvery,
		CleanupEvery: cleanupEvery,
	}
}

// Run bloqueia até o contexto ser cancelado. Dispara um ciclo de cada
// tipo na partida para não esperar o primeiro tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Scheduler started",
		zap.Duration("sync_every", s.SyncEvery),
		zap.Duration("cleanup_every", s.CleanupEvery))

	s.enqueueSync(ctx)
	s.enqueueCleanup(ctx)

	syncTicker := time.NewTicker(s.SyncEvery)
	defer syncTicker.Stop()
	cleanupTicker := time.NewTicker(s.CleanupEvery)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped")
			return
		case <-syncTicker.C:
			s.enqueueSync(ctx)
		case <-cleanupTicker.C:
			s.enqueueCleanup(ctx)
		}
	}
}

func (s *Scheduler) enqueueSync(ctx context.Context) {
	id, enqueued, err := s.store.Enqueue(ctx, Enqueue{
		Type:        TypeSyncAndSettle,
		DedupKey:    KeySyncAndSettle,
		Priority:    5,
		MaxAttempts: s.MaxAttempts,
	})
	if err != nil {
		s.log.Error("Failed to enqueue sync cycle", zap.Error(err))
		return
	}
	if !enqueued {
		s.log.Debug("Sync cycle already pending, skipping tick")
		return
	}
	s.log.Info("Sync cycle enqueued", zap.String("job_id", id))
}

func (s *Scheduler) enqueueCleanup(ctx context.Context) {
	_, enqueued, err := s.store.Enqueue(ctx, Enqueue{
		Type:        TypeCleanup,
		DedupKey:    KeyCleanup,
		Priority:    1,
		MaxAttempts: s.MaxAttempts,
	})
	if err != nil {
		s.log.Error("Failed to enqueue cleanup", zap.Error(err))
		return
	}
	if !enqueued {
		s.log.Debug("Cleanup already pending, skipping tick")
	}
}
