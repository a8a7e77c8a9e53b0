package settlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/grading"
	"github.com/radieske/bet-settlement-platform/internal/provider"
	"github.com/radieske/bet-settlement-platform/internal/repo"
)

// memStore implementa Store em memória para os testes do settler.
type memStore struct {
	mu       sync.Mutex
	bets     map[string]*repo.Bet
	games    map[string]*repo.Game
	balances map[string]int64
	credits  int // quantidade de mutações de saldo
}

func newMemStore() *memStore {
	return &memStore{
		bets:     map[string]*repo.Bet{},
		games:    map[string]*repo.Game{},
		balances: map[string]int64{},
	}
}

func (m *memStore) GetBet(_ context.Context, id string) (*repo.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) GetGame(_ context.Context, id string) (*repo.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return g, nil
}

func (m *memStore) PendingBetIDsByGame(_ context.Context, gameID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, b := range m.bets {
		if b.Status == repo.BetPending && b.GameID != nil && *b.GameID == gameID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) FinishedGameIDsWithPendingBets(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var ids []string
	for _, b := range m.bets {
		if b.Status != repo.BetPending || b.GameID == nil {
			continue
		}
		g, ok := m.games[*b.GameID]
		if ok && g.Status == repo.GameFinished && !seen[g.ID] {
			seen[g.ID] = true
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

func (m *memStore) PendingCompositeBetIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, b := range m.bets {
		if b.Status == repo.BetPending && b.GameID == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) SettlePendingBet(_ context.Context, betID, userID string, status repo.BetStatus, payoutCents int64, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if b.Status != repo.BetPending {
		return false, nil
	}
	now := time.Now()
	b.Status = status
	b.SettledAt = &now
	b.SettleReason = reason
	if payoutCents > 0 {
		m.balances[userID] += payoutCents
		m.credits++
	}
	return true, nil
}

// fakeStats implementa StatsProvider com dados fixos.
type fakeStats struct {
	playerStats  map[string]float64 // "ext|player|stat" -> valor
	periodScores map[string][2]int  // "ext|period" -> placar
}

func (f *fakeStats) PlayerStat(_ context.Context, ext, player, stat string) (float64, error) {
	v, ok := f.playerStats[ext+"|"+player+"|"+stat]
	if !ok {
		return 0, provider.ErrStatUnavailable
	}
	return v, nil
}

func (f *fakeStats) PeriodScore(_ context.Context, ext string, period int) (int, int, error) {
	s, ok := f.periodScores[fmt.Sprintf("%s|%d", ext, period)]
	if !ok {
		return 0, 0, provider.ErrPeriodUnavailable
	}
	return s[0], s[1], nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func finishedGame(id string, home, away int) *repo.Game {
	return &repo.Game{
		ID: id, ExternalID: "EXT_" + id, Status: repo.GameFinished,
		HomeScore: intPtr(home), AwayScore: intPtr(away),
		StartsAt: time.Now().Add(-3 * time.Hour),
	}
}

func newSettler(store Store) *Settler {
	return New(zap.NewNop(), store, &fakeStats{}, nil)
}

func TestSettleBet_MoneylineHomeWins(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeMoneyline, Selection: "HOME",
		Odds: -150, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Won, out.Result)
	// 10 em -150: retorno 16.67, creditado uma vez (aposta já debitada antes)
	assert.Equal(t, int64(1667), out.PayoutCents)
	assert.Equal(t, int64(1667), store.balances["u1"])
}

func TestSettleBet_MoneylineAwayLosesNoCredit(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeMoneyline, Selection: "AWAY",
		Odds: -150, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Lost, out.Result)
	assert.Equal(t, int64(0), out.PayoutCents)
	assert.Equal(t, int64(0), store.balances["u1"])
	assert.Equal(t, 0, store.credits)
}

// Segunda chamada para a mesma aposta é no-op e o saldo muta exatamente uma vez.
func TestSettleBet_Idempotent(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeMoneyline, Selection: "HOME",
		Odds: -150, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}

	s := newSettler(store)
	first, err := s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Equal(t, int64(1667), store.balances["u1"])
	assert.Equal(t, 1, store.credits)
}

func TestSettleBet_TotalPushReturnsStake(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 110)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeTotal, Selection: "OVER",
		Line: floatPtr(220), Odds: -110, StakeCents: 1000,
		Status: repo.BetPending, GameID: strPtr("g1"),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Push, out.Result)
	assert.Equal(t, int64(1000), store.balances["u1"])
}

func TestSettleBet_GameNotFinishedDefers(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = &repo.Game{
		ID: "g1", ExternalID: "EXT_g1", Status: repo.GameLive,
		HomeScore: intPtr(55), AwayScore: intPtr(40),
	}
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeMoneyline, Selection: "HOME",
		Odds: 100, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, repo.BetPending, store.bets["b1"].Status)
}

func TestSettleBet_MissingStatDefersNotPushes(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypePlayerProp, Selection: "OVER",
		Line: floatPtr(29.5), Odds: -110, StakeCents: 1000,
		Status: repo.BetPending, GameID: strPtr("g1"),
		PlayerID: "p9", Stat: "points",
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, repo.BetPending, store.bets["b1"].Status)
}

func TestSettleBet_PlayerPropWithStat(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypePlayerProp, Selection: "OVER",
		Line: floatPtr(29.5), Odds: -110, StakeCents: 1000,
		Status: repo.BetPending, GameID: strPtr("g1"),
		PlayerID: "p9", Stat: "points",
	}

	s := New(zap.NewNop(), store, &fakeStats{
		playerStats: map[string]float64{"EXT_g1|p9|points": 31},
	}, nil)

	out, err := s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Won, out.Result)
}

func TestSettleBet_PeriodPropUnavailablePushesByDefault(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeGameProp, Selection: "HOME_OVER",
		Line: floatPtr(26.5), Odds: -110, StakeCents: 1000,
		Status: repo.BetPending, GameID: strPtr("g1"), Period: intPtr(1),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Push, out.Result)
	assert.Equal(t, "period data unavailable", out.Reason)
	assert.Equal(t, int64(1000), store.balances["u1"])
}

func TestSettleBet_PeriodPropUnavailableDefersWhenConfigured(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeGameProp, Selection: "HOME_OVER",
		Line: floatPtr(26.5), Odds: -110, StakeCents: 1000,
		Status: repo.BetPending, GameID: strPtr("g1"), Period: intPtr(1),
	}

	s := newSettler(store)
	s.DeferUnresolvedGameProps = true

	out, err := s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, repo.BetPending, store.bets["b1"].Status)
}

func TestSettleBet_SpreadMissingLineErrorsAndStaysPending(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeSpread, Selection: "HOME",
		Odds: -110, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	assert.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, repo.BetPending, store.bets["b1"].Status)
}

func TestSettleBet_ParlayDefersUntilAllGamesFinish(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.games["g2"] = &repo.Game{ID: "g2", ExternalID: "EXT_g2", Status: repo.GameLive}
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeParlay,
		StakeCents: 1000, Status: repo.BetPending,
		Legs: []repo.Leg{
			{Idx: 0, Type: repo.TypeMoneyline, Selection: "HOME", Odds: 100, GameID: "g1"},
			{Idx: 1, Type: repo.TypeMoneyline, Selection: "AWAY", Odds: 100, GameID: "g2"},
		},
	}

	s := newSettler(store)
	out, err := s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, out)

	// segundo jogo encerra e o parlay resolve
	store.games["g2"] = finishedGame("g2", 90, 104)
	out, err = s.SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Won, out.Result)
	assert.Equal(t, int64(4000), out.PayoutCents)
}

func TestSettleBet_TeaserAdjustedLines(t *testing.T) {
	store := newMemStore()
	// casa vence por 4: spread -6.5 perderia, mas o teaser de 6 pontos
	// ajusta para -0.5 e cobre
	store.games["g1"] = finishedGame("g1", 104, 100)
	store.games["g2"] = finishedGame("g2", 90, 104)
	rule := grading.TeaserPushRulePush
	store.bets["b1"] = &repo.Bet{
		ID: "b1", UserID: "u1", Type: repo.TypeTeaser,
		StakeCents: 1000, Status: repo.BetPending,
		TeaserPoints: floatPtr(6.0), TeaserPushRule: &rule,
		Legs: []repo.Leg{
			{Idx: 0, Type: repo.TypeSpread, Selection: "HOME", Line: floatPtr(-6.5), Odds: -110, GameID: "g1"},
			{Idx: 1, Type: repo.TypeMoneyline, Selection: "AWAY", Odds: -110, GameID: "g2"},
		},
	}

	out, err := newSettler(store).SettleBet(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, grading.Won, out.Result)
	// payout plano do tier 2 pernas / 6 pontos (-110)
	assert.Equal(t, int64(1909), out.PayoutCents)
}

func TestSettleGameBets_SettlesEveryPendingBet(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("b%d", i)
		store.bets[id] = &repo.Bet{
			ID: id, UserID: "u1", Type: repo.TypeMoneyline, Selection: "HOME",
			Odds: 100, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
		}
	}

	settled, errs := newSettler(store).SettleGameBets(context.Background(), "g1")
	assert.Equal(t, 3, settled)
	assert.Empty(t, errs)
}

func TestSettleAllFinishedGames_SweepsSinglesAndComposites(t *testing.T) {
	store := newMemStore()
	store.games["g1"] = finishedGame("g1", 110, 95)
	store.games["g2"] = &repo.Game{ID: "g2", ExternalID: "EXT_g2", Status: repo.GameLive}

	store.bets["single"] = &repo.Bet{
		ID: "single", UserID: "u1", Type: repo.TypeMoneyline, Selection: "HOME",
		Odds: 100, StakeCents: 1000, Status: repo.BetPending, GameID: strPtr("g1"),
	}
	store.bets["ready-parlay"] = &repo.Bet{
		ID: "ready-parlay", UserID: "u1", Type: repo.TypeParlay,
		StakeCents: 1000, Status: repo.BetPending,
		Legs: []repo.Leg{
			{Idx: 0, Type: repo.TypeMoneyline, Selection: "HOME", Odds: 100, GameID: "g1"},
		},
	}
	store.bets["waiting-parlay"] = &repo.Bet{
		ID: "waiting-parlay", UserID: "u1", Type: repo.TypeParlay,
		StakeCents: 1000, Status: repo.BetPending,
		Legs: []repo.Leg{
			{Idx: 0, Type: repo.TypeMoneyline, Selection: "HOME", Odds: 100, GameID: "g2"},
		},
	}

	rep, err := newSettler(store).SettleAllFinishedGames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.GamesSwept)
	assert.Equal(t, 2, rep.BetsSettled)
	assert.Equal(t, 1, rep.Deferred)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, repo.BetPending, store.bets["waiting-parlay"].Status)
}
