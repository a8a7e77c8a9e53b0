package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/reconciler"
	"github.com/radieske/bet-settlement-platform/internal/settlement"
)

// BetSettler é o recorte do Settler usado pelos handlers.
type BetSettler interface {
	SettleBet(ctx context.Context, betID string) (*settlement.Outcome, error)
	SettleGameBets(ctx context.Context, gameID string) (int, []string)
	SettleAllFinishedGames(ctx context.Context) (settlement.SweepReport, error)
}

// Syncer é o recorte do Reconciler usado pelos handlers.
type Syncer interface {
	SyncFinishedGames(ctx context.Context) (reconciler.Report, error)
	CleanupStuckLiveGames(ctx context.Context) (reconciler.Report, error)
}

// Handlers monta o mapa de handlers da fila. O cleanup recebe o próprio
// store para requeue de jobs travados e poda de terminais.
type Handlers struct {
	log        *zap.Logger
	settler    BetSettler
	syncer     Syncer
	store      Store
	retention  time.Duration
	visibility time.Duration
}

func NewHandlers(log *zap.Logger, settler BetSettler, syncer Syncer, store Store, retention, visibility time.Duration) *Handlers {
	return &Handlers{
		log:        log,
		settler:    settler,
		syncer:     syncer,
		store:      store,
		retention:  retention,
		visibility: visibility,
	}
}

func (h *Handlers) Map() map[Type]Handler {
	return map[Type]Handler{
		TypeSyncAndSettle: h.syncAndSettle,
		TypeSettleGame:    h.settleGame,
		TypeSettleBet:     h.settleBet,
		TypeSettleAll:     h.settleAll,
		TypeCleanup:       h.cleanup,
	}
}

// syncAndSettle é o ciclo periódico completo: sincroniza jogos encerrados
// com o provedor, força jogos travados e varre apostas pendentes.
func (h *Handlers) syncAndSettle(ctx context.Context, _ *Job) (Result, error) {
	syncRep, err := h.syncer.SyncFinishedGames(ctx)
	if err != nil {
		return Done, fmt.Errorf("sync finished games: %w", err)
	}

	stuckRep, err := h.syncer.CleanupStuckLiveGames(ctx)
	if err != nil {
		return Done, fmt.Errorf("cleanup stuck games: %w", err)
	}

	sweep, err := h.settler.SettleAllFinishedGames(ctx)
	if err != nil {
		return Done, fmt.Errorf("settle finished games: %w", err)
	}

	h.log.Info("Sync cycle completed",
		zap.Int("events_checked", syncRep.Checked),
		zap.Int("games_finished", syncRep.Updated),
		zap.Int("stuck_forced", stuckRep.Updated),
		zap.Int("bets_settled", syncRep.BetsSettled+stuckRep.BetsSettled+sweep.BetsSettled),
		zap.Int("deferred", sweep.Deferred),
		zap.Int("errors", len(syncRep.Errors)+len(stuckRep.Errors)+len(sweep.Errors)))

	if len(sweep.Errors) > 0 || len(syncRep.Errors) > 0 {
		h.log.Warn("Sync cycle finished with item errors",
			zap.Strings("sync_errors", syncRep.Errors),
			zap.Strings("sweep_errors", sweep.Errors))
	}
	return Done, nil
}

func (h *Handlers) settleGame(ctx context.Context, job *Job) (Result, error) {
	var p GamePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return Done, fmt.Errorf("decode payload: %w", err)
	}
	if p.GameID == "" {
		return Done, errors.New("settle-game job without game_id")
	}

	settled, errs := h.settler.SettleGameBets(ctx, p.GameID)
	if len(errs) > 0 {
		return Done, errors.New(strings.Join(errs, "; "))
	}
	h.log.Info("Game settlement finished",
		zap.String("game_id", p.GameID),
		zap.Int("bets_settled", settled))
	return Done, nil
}

func (h *Handlers) settleBet(ctx context.Context, job *Job) (Result, error) {
	var p BetPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return Done, fmt.Errorf("decode payload: %w", err)
	}
	if p.BetID == "" {
		return Done, errors.New("settle-bet job without bet_id")
	}

	out, err := h.settler.SettleBet(ctx, p.BetID)
	if err != nil {
		return Done, err
	}
	if out == nil {
		// aposta já terminal ou dados ainda indisponíveis
		return Deferred, nil
	}
	h.log.Info("Bet settled",
		zap.String("bet_id", out.BetID),
		zap.String("result", string(out.Result)),
		zap.Int64("payout_cents", out.PayoutCents))
	return Done, nil
}

func (h *Handlers) settleAll(ctx context.Context, _ *Job) (Result, error) {
	sweep, err := h.settler.SettleAllFinishedGames(ctx)
	if err != nil {
		return Done, err
	}
	h.log.Info("Full settlement sweep finished",
		zap.Int("games_swept", sweep.GamesSwept),
		zap.Int("bets_settled", sweep.BetsSettled),
		zap.Int("deferred", sweep.Deferred),
		zap.Int("errors", len(sweep.Errors)))
	if len(sweep.Errors) > 0 {
		return Done, errors.New(strings.Join(sweep.Errors, "; "))
	}
	return Done, nil
}

// cleanup: devolve jobs travados em ACTIVE e poda jobs terminais antigos.
func (h *Handlers) cleanup(ctx context.Context, _ *Job) (Result, error) {
	requeued, err := h.store.RequeueStalled(ctx, h.visibility)
	if err != nil {
		return Done, fmt.Errorf("requeue stalled: %w", err)
	}
	pruned, err := h.store.Prune(ctx, h.retention)
	if err != nil {
		return Done, fmt.Errorf("prune jobs: %w", err)
	}
	if requeued > 0 || pruned > 0 {
		h.log.Info("Queue maintenance finished",
			zap.Int("requeued", requeued),
			zap.Int64("pruned", pruned))
	}
	return Done, nil
}
