package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/reconciler"
	"github.com/radieske/bet-settlement-platform/internal/settlement"
)

type fakeSettler struct {
	outcome   *settlement.Outcome
	betErr    error
	gameErrs  []string
	sweep     settlement.SweepReport
	sweepErr  error
	gameCalls []string
}

func (f *fakeSettler) SettleBet(_ context.Context, betID string) (*settlement.Outcome, error) {
	return f.outcome, f.betErr
}

func (f *fakeSettler) SettleGameBets(_ context.Context, gameID string) (int, []string) {
	f.gameCalls = append(f.gameCalls, gameID)
	return 2, f.gameErrs
}

func (f *fakeSettler) SettleAllFinishedGames(context.Context) (settlement.SweepReport, error) {
	return f.sweep, f.sweepErr
}

type fakeSyncer struct {
	syncErr    error
	cleanupErr error
}

func (f *fakeSyncer) SyncFinishedGames(context.Context) (reconciler.Report, error) {
	return reconciler.Report{Checked: 3, Updated: 1}, f.syncErr
}

func (f *fakeSyncer) CleanupStuckLiveGames(context.Context) (reconciler.Report, error) {
	return reconciler.Report{}, f.cleanupErr
}

func newTestHandlers(settler *fakeSettler, syncer *fakeSyncer, store Store) *Handlers {
	return NewHandlers(zap.NewNop(), settler, syncer, store, 72*time.Hour, 10*time.Minute)
}

func gameJob(t *testing.T, gameID string) *Job {
	t.Helper()
	payload, err := json.Marshal(GamePayload{GameID: gameID})
	require.NoError(t, err)
	return &Job{ID: "j1", Type: TypeSettleGame, Payload: payload}
}

func TestSyncAndSettlePropagatesProviderError(t *testing.T) {
	h := newTestHandlers(&fakeSettler{}, &fakeSyncer{syncErr: errors.New("provider down")}, NewMemoryStore())

	_, err := h.syncAndSettle(context.Background(), &Job{})
	require.Error(t, err, "provider outage must trigger a queue retry")
}

func TestSyncAndSettleCompletesCycle(t *testing.T) {
	h := newTestHandlers(&fakeSettler{}, &fakeSyncer{}, NewMemoryStore())

	res, err := h.syncAndSettle(context.Background(), &Job{})
	require.NoError(t, err)
	assert.Equal(t, Done, res)
}

func TestSettleGameFailsOnItemErrors(t *testing.T) {
	settler := &fakeSettler{gameErrs: []string{"bet b1: bad legs"}}
	h := newTestHandlers(settler, &fakeSyncer{}, NewMemoryStore())

	_, err := h.settleGame(context.Background(), gameJob(t, "g1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad legs")
	assert.Equal(t, []string{"g1"}, settler.gameCalls)
}

func TestSettleGameRejectsEmptyPayload(t *testing.T) {
	h := newTestHandlers(&fakeSettler{}, &fakeSyncer{}, NewMemoryStore())

	_, err := h.settleGame(context.Background(), gameJob(t, ""))
	require.Error(t, err)
}

func TestSettleBetDefersWhenDataNotReady(t *testing.T) {
	// outcome nil sem erro = aposta já terminal ou dados indisponíveis
	h := newTestHandlers(&fakeSettler{outcome: nil}, &fakeSyncer{}, NewMemoryStore())

	payload, _ := json.Marshal(BetPayload{BetID: "b1"})
	res, err := h.settleBet(context.Background(), &Job{Type: TypeSettleBet, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, Deferred, res)
}

func TestSettleBetDoneOnOutcome(t *testing.T) {
	settler := &fakeSettler{outcome: &settlement.Outcome{BetID: "b1", Result: "WON", PayoutCents: 2500}}
	h := newTestHandlers(settler, &fakeSyncer{}, NewMemoryStore())

	payload, _ := json.Marshal(BetPayload{BetID: "b1"})
	res, err := h.settleBet(context.Background(), &Job{Type: TypeSettleBet, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, Done, res)
}

func TestCleanupRunsQueueMaintenance(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// um job ACTIVE abandonado e um COMPLETED antigo
	stalled, _, err := store.Enqueue(ctx, Enqueue{Type: TypeSettleGame})
	require.NoError(t, err)
	_, err = store.Claim(ctx)
	require.NoError(t, err)

	h := NewHandlers(zap.NewNop(), &fakeSettler{}, &fakeSyncer{}, store, 0, 0)
	res, err := h.cleanup(ctx, &Job{})
	require.NoError(t, err)
	assert.Equal(t, Done, res)

	j, ok := store.Get(stalled)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, j.Status, "stalled active job must be requeued")
}
