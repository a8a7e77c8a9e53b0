package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/provider"
	"github.com/radieske/bet-settlement-platform/internal/repo"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// GameStore é a fatia de persistência de jogos que o reconciliador usa.
// O reconciliador é o único mutador de jogos do sistema.
type GameStore interface {
	GameByExternalID(ctx context.Context, externalID string) (*repo.Game, error)
	MarkFinished(ctx context.Context, gameID string, homeScore, awayScore int) (bool, error)
	StuckLiveGames(ctx context.Context, startedBefore time.Time) ([]*repo.Game, error)
	ForceFinish(ctx context.Context, gameID string) (bool, error)
}

// GameSettler dispara a liquidação das apostas de um jogo recém-encerrado.
type GameSettler interface {
	SettleGameBets(ctx context.Context, gameID string) (settled int, errs []string)
}

// Report resume uma passada de reconciliação. Erros são coletados por item;
// um registro ruim nunca aborta a varredura.
type Report struct {
	Checked     int
	Updated     int
	BetsSettled int
	Errors      []string
}

// Reconciler detecta jogos encerrados no provedor externo, grava o placar
// final e dispara a liquidação das apostas do jogo.
type Reconciler struct {
	log     *zap.Logger
	store   GameStore
	prov    provider.Client
	settler GameSettler

	Window       time.Duration // janela retroativa de busca de eventos
	StuckTimeout time.Duration // idade mínima de um LIVE para o fallback
}

func New(log *zap.Logger, store GameStore, prov provider.Client, settler GameSettler, window, stuckTimeout time.Duration) *Reconciler {
	return &Reconciler{
		log: log, store: store, prov: prov, settler: settler,
		Window: window, StuckTimeout: stuckTimeout,
	}
}

// SyncFinishedGames busca eventos da janela retroativa no provedor e encerra
// os jogos que ele reporta como finalizados. Erro de fetch é transitório e
// sobe para o retry do job; erros por evento só entram no relatório.
func (r *Reconciler) SyncFinishedGames(ctx context.Context) (Report, error) {
	var rep Report

	now := time.Now().UTC()
	evs, err := r.prov.EventsBetween(ctx, now.Add(-r.Window), now)
	if err != nil {
		return rep, fmt.Errorf("provider events: %w", err)
	}

	for _, ev := range evs {
		if !ev.Finished() {
			continue
		}
		rep.Checked++

		if ev.HomeScore == nil || ev.AwayScore == nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("event %s: finished without final scores", ev.ExternalID))
			continue
		}

		game, err := r.store.GameByExternalID(ctx, ev.ExternalID)
		if errors.Is(err, repo.ErrNotFound) {
			continue // evento que não acompanhamos
		}
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("event %s: %v", ev.ExternalID, err))
			continue
		}
		if game.FinishedWithScores() {
			continue // placar final é imutável
		}

		ok, err := r.store.MarkFinished(ctx, game.ID, *ev.HomeScore, *ev.AwayScore)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("game %s: mark finished: %v", game.ID, err))
			continue
		}
		if !ok {
			continue
		}

		rep.Updated++
		metrics.GamesFinished.Inc()
		r.log.Info("game finished",
			zap.String("game_id", game.ID),
			zap.String("external_id", ev.ExternalID),
			zap.Int("home", *ev.HomeScore),
			zap.Int("away", *ev.AwayScore),
		)

		settled, errs := r.settler.SettleGameBets(ctx, game.ID)
		rep.BetsSettled += settled
		rep.Errors = append(rep.Errors, errs...)
	}

	return rep, nil
}

// CleanupStuckLiveGames é o fallback contra notificações de encerramento
// perdidas: jogos em LIVE há mais tempo que o timeout e já com placar são
// forçados para FINISHED e liquidados.
func (r *Reconciler) CleanupStuckLiveGames(ctx context.Context) (Report, error) {
	var rep Report

	cutoff := time.Now().UTC().Add(-r.StuckTimeout)
	games, err := r.store.StuckLiveGames(ctx, cutoff)
	if err != nil {
		return rep, fmt.Errorf("list stuck games: %w", err)
	}

	for _, g := range games {
		rep.Checked++
		ok, err := r.store.ForceFinish(ctx, g.ID)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("game %s: force finish: %v", g.ID, err))
			continue
		}
		if !ok {
			continue
		}

		rep.Updated++
		metrics.GamesFinished.Inc()
		r.log.Warn("stuck live game forced to finished",
			zap.String("game_id", g.ID),
			zap.Time("starts_at", g.StartsAt),
		)

		settled, errs := r.settler.SettleGameBets(ctx, g.ID)
		rep.BetsSettled += settled
		rep.Errors = append(rep.Errors, errs...)
	}

	return rep, nil
}

// ApplyScoreUpdate aplica uma notificação de placar vinda do feed em tempo
// real. Retorna o id interno do jogo e se ele está encerrado com placar,
// para o chamador decidir enfileirar a liquidação.
func (r *Reconciler) ApplyScoreUpdate(ctx context.Context, ev events.ScoreUpdate) (gameID string, finished bool, err error) {
	game, err := r.store.GameByExternalID(ctx, ev.EventID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil // evento que não acompanhamos
	}
	if err != nil {
		return "", false, err
	}

	if !ev.Final || ev.HomeScore == nil || ev.AwayScore == nil {
		return game.ID, false, nil
	}
	if game.FinishedWithScores() {
		return game.ID, true, nil
	}

	ok, err := r.store.MarkFinished(ctx, game.ID, *ev.HomeScore, *ev.AwayScore)
	if err != nil {
		return game.ID, false, err
	}
	if ok {
		metrics.GamesFinished.Inc()
		r.log.Info("game finished via score push",
			zap.String("game_id", game.ID),
			zap.String("external_id", ev.EventID),
		)
	}
	return game.ID, true, nil
}
