package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/grading"
	"github.com/radieske/bet-settlement-platform/internal/provider"
	"github.com/radieske/bet-settlement-platform/internal/repo"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// Store é a fatia de persistência que o settler consome. Em produção é o
// repo Postgres; nos testes, um store em memória.
type Store interface {
	GetBet(ctx context.Context, id string) (*repo.Bet, error)
	GetGame(ctx context.Context, id string) (*repo.Game, error)
	PendingBetIDsByGame(ctx context.Context, gameID string) ([]string, error)
	FinishedGameIDsWithPendingBets(ctx context.Context) ([]string, error)
	PendingCompositeBetIDs(ctx context.Context) ([]string, error)
	SettlePendingBet(ctx context.Context, betID, userID string, status repo.BetStatus, payoutCents int64, reason string) (bool, error)
}

// StatsProvider é o recorte do provedor usado para props.
type StatsProvider interface {
	PlayerStat(ctx context.Context, eventExternalID, playerID, stat string) (float64, error)
	PeriodScore(ctx context.Context, eventExternalID string, period int) (home, away int, err error)
}

// ResultPublisher propaga liquidações para fora (Kafka + broadcast Redis).
type ResultPublisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Outcome é o desfecho de uma liquidação efetivada.
type Outcome struct {
	BetID       string
	Result      grading.Result
	PayoutCents int64
	Reason      string
}

// SweepReport resume uma varredura de liquidação.
// Erros entram como strings por item: um registro ruim não aborta a varredura.
type SweepReport struct {
	GamesSwept  int
	BetsSettled int
	Deferred    int
	Errors      []string
}

// errNotReady: dado necessário ainda ausente. Sentinela interna; o chamador
// vê nil (adiado), nunca um erro.
var errNotReady = errors.New("not ready to settle")

// Settler orquestra a liquidação: carrega a aposta, gradua, calcula payout e
// efetiva status + saldo em uma única transação, exatamente uma vez.
type Settler struct {
	log   *zap.Logger
	store Store
	stats StatsProvider
	publ  ResultPublisher // opcional

	// Política para game props de período sem dado disponível:
	// true adia a liquidação; false (default) gradua como push.
	DeferUnresolvedGameProps bool
}

func New(log *zap.Logger, store Store, stats StatsProvider, publ ResultPublisher) *Settler {
	return &Settler{log: log, store: store, stats: stats, publ: publ}
}

// SettleBet liquida uma aposta pendente.
// Retorna (nil, nil) quando não há o que fazer: aposta já terminal (no-op
// idempotente) ou dados ainda não prontos (adiada para a próxima varredura).
func (s *Settler) SettleBet(ctx context.Context, betID string) (*Outcome, error) {
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("load bet %s: %w", betID, err)
	}
	if bet.Status != repo.BetPending {
		return nil, nil // já terminal; re-liquidar é proibido
	}

	// grade devolve o payout já resolvido para o desfecho:
	// vitória => retorno integral; push => devolução (parcial em reverses);
	// derrota => zero.
	grade, payout, err := s.grade(ctx, bet)
	if errors.Is(err, errNotReady) || errors.Is(err, provider.ErrStatUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var status repo.BetStatus
	switch grade.Result {
	case grading.Won:
		status = repo.BetWon
	case grading.Push:
		status = repo.BetPush
	default:
		status = repo.BetLost
	}

	ok, err := s.store.SettlePendingBet(ctx, bet.ID, bet.UserID, status, payout, grade.Reason)
	if err != nil {
		return nil, fmt.Errorf("commit settlement of %s: %w", bet.ID, err)
	}
	if !ok {
		return nil, nil // outro worker venceu a corrida
	}

	metrics.BetsSettled.WithLabelValues(string(grade.Result)).Inc()
	s.log.Info("bet settled",
		zap.String("bet_id", bet.ID),
		zap.String("result", string(grade.Result)),
		zap.Int64("payout_cents", payout),
		zap.String("reason", grade.Reason),
	)

	if s.publ != nil {
		ev := events.BetSettled{
			BetID:       bet.ID,
			UserID:      bet.UserID,
			Result:      string(grade.Result),
			PayoutCents: payout,
			Reason:      grade.Reason,
			Ts:          time.Now().UTC(),
		}
		if perr := s.publ.PublishBetSettled(ctx, ev); perr != nil {
			// A liquidação já commitou; falha de publicação não a desfaz
			s.log.Warn("publish bet_settled", zap.String("bet_id", bet.ID), zap.Error(perr))
		}
	}

	return &Outcome{BetID: bet.ID, Result: grade.Result, PayoutCents: payout, Reason: grade.Reason}, nil
}

// SettleGameBets liquida toda aposta simples pendente atada ao jogo.
func (s *Settler) SettleGameBets(ctx context.Context, gameID string) (settled int, errs []string) {
	ids, err := s.store.PendingBetIDsByGame(ctx, gameID)
	if err != nil {
		return 0, []string{fmt.Sprintf("list bets of game %s: %v", gameID, err)}
	}
	for _, id := range ids {
		out, err := s.SettleBet(ctx, id)
		if err != nil {
			s.log.Warn("settle bet failed", zap.String("bet_id", id), zap.Error(err))
			errs = append(errs, fmt.Sprintf("bet %s: %v", id, err))
			continue
		}
		if out != nil {
			settled++
		}
	}
	return settled, errs
}

// SettleAllFinishedGames varre jogos encerrados com apostas simples
// pendentes e, depois, apostas compostas cujos jogos já encerraram todos.
// Apostas não prontas são puladas em silêncio; a próxima varredura retenta.
func (s *Settler) SettleAllFinishedGames(ctx context.Context) (SweepReport, error) {
	var rep SweepReport

	gameIDs, err := s.store.FinishedGameIDsWithPendingBets(ctx)
	if err != nil {
		return rep, fmt.Errorf("list finished games: %w", err)
	}
	for _, gid := range gameIDs {
		n, errs := s.SettleGameBets(ctx, gid)
		rep.GamesSwept++
		rep.BetsSettled += n
		rep.Errors = append(rep.Errors, errs...)
	}

	compIDs, err := s.store.PendingCompositeBetIDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list pending composite bets: %w", err)
	}
	for _, id := range compIDs {
		out, err := s.SettleBet(ctx, id)
		if err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("bet %s: %v", id, err))
			continue
		}
		if out == nil {
			rep.Deferred++
			continue
		}
		rep.BetsSettled++
	}

	return rep, nil
}

// grade seleciona o caminho de graduação pelo tipo da aposta.
// Retorna o desfecho e o payout em centavos correspondente a ele.
func (s *Settler) grade(ctx context.Context, bet *repo.Bet) (grading.Grade, int64, error) {
	if bet.Type.IsComposite() {
		return s.gradeComposite(ctx, bet)
	}

	if bet.GameID == nil {
		return grading.Grade{}, 0, fmt.Errorf("bet %s: single bet without game reference", bet.ID)
	}
	game, err := s.store.GetGame(ctx, *bet.GameID)
	if err != nil {
		return grading.Grade{}, 0, fmt.Errorf("load game %s: %w", *bet.GameID, err)
	}
	if !game.FinishedWithScores() {
		return grading.Grade{}, 0, errNotReady
	}

	g, err := s.gradeLeg(ctx, legOf(bet), game, nil)
	if err != nil {
		return grading.Grade{}, 0, err
	}

	switch g.Result {
	case grading.Won:
		payout := bet.PotentialPayoutCents
		if payout == 0 {
			payout = grading.PayoutCents(bet.StakeCents, bet.Odds)
		}
		return g, payout, nil
	case grading.Push:
		return g, bet.StakeCents, nil
	default:
		return g, 0, nil
	}
}

// legOf projeta uma aposta simples como uma leg para reuso do grader.
func legOf(bet *repo.Bet) repo.Leg {
	return repo.Leg{
		Type:      bet.Type,
		Selection: bet.Selection,
		Line:      bet.Line,
		Odds:      bet.Odds,
		PlayerID:  bet.PlayerID,
		Stat:      bet.Stat,
		Period:    bet.Period,
	}
}

// gradeComposite gradua cada leg e combina pelo resolvedor do tipo.
// Toda leg precisa de jogo encerrado com placar; caso contrário a aposta
// inteira é adiada.
func (s *Settler) gradeComposite(ctx context.Context, bet *repo.Bet) (grading.Grade, int64, error) {
	if len(bet.Legs) == 0 {
		return grading.Grade{}, 0, fmt.Errorf("bet %s: composite bet without legs", bet.ID)
	}

	var teaserPoints *float64
	if bet.Type == repo.TypeTeaser {
		if bet.TeaserPoints == nil {
			return grading.Grade{}, 0, fmt.Errorf("bet %s: teaser without point adjustment", bet.ID)
		}
		teaserPoints = bet.TeaserPoints
	}

	legGrades := make([]grading.LegGrade, len(bet.Legs))
	for i, leg := range bet.Legs {
		game, err := s.store.GetGame(ctx, leg.GameID)
		if err != nil {
			return grading.Grade{}, 0, fmt.Errorf("load game %s: %w", leg.GameID, err)
		}
		if !game.FinishedWithScores() {
			return grading.Grade{}, 0, errNotReady
		}
		g, err := s.gradeLeg(ctx, leg, game, teaserPoints)
		if err != nil {
			return grading.Grade{}, 0, err
		}
		legGrades[i] = grading.LegGrade{Result: g.Result, Odds: leg.Odds}
	}

	switch bet.Type {
	case repo.TypeParlay:
		g, payout := grading.ResolveParlay(bet.StakeCents, legGrades)
		return g, payout, nil

	case repo.TypeTeaser:
		rule := grading.TeaserPushRulePush
		if bet.TeaserPushRule != nil {
			rule = *bet.TeaserPushRule
		}
		return grading.ResolveTeaser(bet.StakeCents, legGrades, *teaserPoints, rule)

	case repo.TypeIfBet:
		g, payout := grading.ResolveIfBet(bet.StakeCents, legGrades, ifCondition(bet))
		return g, payout, nil

	case repo.TypeReverse:
		g, payout := grading.ResolveReverse(bet.StakeCents, legGrades, ifCondition(bet))
		return g, payout, nil

	case repo.TypeBetItAll:
		g, payout := grading.ResolveBetItAll(bet.StakeCents, legGrades)
		return g, payout, nil

	case repo.TypeRoundRobin:
		if bet.RoundRobinSize == nil {
			return grading.Grade{}, 0, fmt.Errorf("bet %s: round robin without group size", bet.ID)
		}
		return grading.ResolveRoundRobin(bet.StakeCents, legGrades, *bet.RoundRobinSize)

	default:
		return grading.Grade{}, 0, fmt.Errorf("bet %s: unknown composite type %s", bet.ID, bet.Type)
	}
}

func ifCondition(bet *repo.Bet) grading.IfCondition {
	if bet.IfCondition != nil {
		return *bet.IfCondition
	}
	return grading.IfWinOnly
}

// gradeLeg gradua uma leg contra o jogo encerrado. Para teasers, a linha é
// ajustada a favor do apostador antes da graduação.
func (s *Settler) gradeLeg(ctx context.Context, leg repo.Leg, game *repo.Game, teaserPoints *float64) (grading.Grade, error) {
	home, away := *game.HomeScore, *game.AwayScore

	switch leg.Type {
	case repo.TypeSpread:
		if leg.Line == nil {
			return grading.Grade{}, fmt.Errorf("%w: spread leg", grading.ErrMissingLine)
		}
		line := *leg.Line
		if teaserPoints != nil {
			line = grading.TeaserSpreadLine(line, *teaserPoints)
		}
		sel, opp, err := sideScores(leg.Selection, home, away)
		if err != nil {
			return grading.Grade{}, err
		}
		return grading.Spread(sel, opp, line), nil

	case repo.TypeMoneyline:
		sel, opp, err := sideScores(leg.Selection, home, away)
		if err != nil {
			return grading.Grade{}, err
		}
		return grading.Moneyline(sel, opp), nil

	case repo.TypeTotal:
		if leg.Line == nil {
			return grading.Grade{}, fmt.Errorf("%w: total leg", grading.ErrMissingLine)
		}
		over, err := isOver(leg.Selection)
		if err != nil {
			return grading.Grade{}, err
		}
		line := *leg.Line
		if teaserPoints != nil {
			line = grading.TeaserTotalLine(over, line, *teaserPoints)
		}
		return grading.Total(over, home, away, line), nil

	case repo.TypePlayerProp:
		if leg.Line == nil {
			return grading.Grade{}, fmt.Errorf("%w: player prop", grading.ErrMissingLine)
		}
		over, err := isOver(leg.Selection)
		if err != nil {
			return grading.Grade{}, err
		}
		// Estatística ausente sobe como erro para o settler adiar;
		// nunca vira push silencioso.
		value, err := s.stats.PlayerStat(ctx, game.ExternalID, leg.PlayerID, leg.Stat)
		if err != nil {
			return grading.Grade{}, err
		}
		return grading.PlayerProp(over, value, *leg.Line), nil

	case repo.TypeGameProp:
		return s.gradeGameProp(ctx, leg, game)

	default:
		return grading.Grade{}, fmt.Errorf("unknown leg type %s", leg.Type)
	}
}

// gradeGameProp gradua team totals, inclusive variantes por período.
// Dado de período indisponível segue a política configurada: push com motivo
// explícito (default) ou adiar.
func (s *Settler) gradeGameProp(ctx context.Context, leg repo.Leg, game *repo.Game) (grading.Grade, error) {
	if leg.Line == nil {
		return grading.Grade{}, fmt.Errorf("%w: game prop", grading.ErrMissingLine)
	}
	side, over, err := propSelection(leg.Selection)
	if err != nil {
		return grading.Grade{}, err
	}

	home, away := *game.HomeScore, *game.AwayScore
	if leg.Period != nil {
		home, away, err = s.stats.PeriodScore(ctx, game.ExternalID, *leg.Period)
		if errors.Is(err, provider.ErrPeriodUnavailable) {
			if s.DeferUnresolvedGameProps {
				return grading.Grade{}, errNotReady
			}
			return grading.Grade{Result: grading.Push, Reason: "period data unavailable"}, nil
		}
		if err != nil {
			return grading.Grade{}, err
		}
	}

	score := home
	if side == "AWAY" {
		score = away
	}
	return grading.TeamTotal(over, score, *leg.Line), nil
}

func sideScores(selection string, home, away int) (sel, opp int, err error) {
	switch selection {
	case "HOME":
		return home, away, nil
	case "AWAY":
		return away, home, nil
	default:
		return 0, 0, fmt.Errorf("invalid side selection %q", selection)
	}
}

func isOver(selection string) (bool, error) {
	switch selection {
	case "OVER":
		return true, nil
	case "UNDER":
		return false, nil
	default:
		return false, fmt.Errorf("invalid over/under selection %q", selection)
	}
}

// propSelection interpreta seleções de game prop no formato "HOME_OVER".
func propSelection(selection string) (side string, over bool, err error) {
	parts := strings.SplitN(selection, "_", 2)
	if len(parts) != 2 || (parts[0] != "HOME" && parts[0] != "AWAY") {
		return "", false, fmt.Errorf("invalid game prop selection %q", selection)
	}
	over, err = isOver(parts[1])
	if err != nil {
		return "", false, err
	}
	return parts[0], over, nil
}
