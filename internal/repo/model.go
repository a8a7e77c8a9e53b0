package repo

import (
	"time"

	"github.com/radieske/bet-settlement-platform/internal/grading"
)

// Status de um jogo. Placar só é confiável quando FINISHED.
type GameStatus string

const (
	GameScheduled GameStatus = "SCHEDULED"
	GameLive      GameStatus = "LIVE"
	GameFinished  GameStatus = "FINISHED"
)

// Status de uma aposta. Transições são unidirecionais: PENDING -> terminal.
type BetStatus string

const (
	BetPending BetStatus = "PENDING"
	BetWon     BetStatus = "WON"
	BetLost    BetStatus = "LOST"
	BetPush    BetStatus = "PUSH"
)

// Tipo de aposta. Tipos simples referenciam um jogo; compostos carregam legs.
type BetType string

const (
	TypeSpread     BetType = "SPREAD"
	TypeMoneyline  BetType = "MONEYLINE"
	TypeTotal      BetType = "TOTAL"
	TypePlayerProp BetType = "PLAYER_PROP"
	TypeGameProp   BetType = "GAME_PROP"
	TypeParlay     BetType = "PARLAY"
	TypeTeaser     BetType = "TEASER"
	TypeIfBet      BetType = "IF_BET"
	TypeReverse    BetType = "REVERSE"
	TypeBetItAll   BetType = "BET_IT_ALL"
	TypeRoundRobin BetType = "ROUND_ROBIN"
)

// IsComposite indica se o tipo carrega legs em vez de referenciar um jogo direto.
func (t BetType) IsComposite() bool {
	switch t {
	case TypeParlay, TypeTeaser, TypeIfBet, TypeReverse, TypeBetItAll, TypeRoundRobin:
		return true
	}
	return false
}

// Game é o modelo persistido de um evento esportivo.
// Placar imutável após FINISHED; mutado apenas pelo reconciliador.
type Game struct {
	ID         string
	ExternalID string
	HomeTeam   string
	AwayTeam   string
	Status     GameStatus
	HomeScore  *int
	AwayScore  *int
	StartsAt   time.Time
	FinishedAt *time.Time
}

// FinishedWithScores indica se o jogo já pode liquidar apostas simples.
func (g *Game) FinishedWithScores() bool {
	return g.Status == GameFinished && g.HomeScore != nil && g.AwayScore != nil
}

// Leg é uma perna de aposta composta, gradável de forma independente.
// A ordem (Idx) importa para if-bets e reverses.
type Leg struct {
	Idx       int
	Type      BetType
	Selection string // "HOME"|"AWAY"|"OVER"|"UNDER"
	Line      *float64
	Odds      float64 // odds americanas (-150, +120)
	GameID    string
	PlayerID  string // player props
	Stat      string // player props: "points", "rebounds", ...
	Period    *int   // game props por período
}

// Bet é o modelo persistido de uma aposta.
// Metadados por tipo ficam tagueados pelo campo Type; dispatch é exaustivo
// no settler, nunca via mapa genérico.
type Bet struct {
	ID                   string
	UserID               string
	Type                 BetType
	Selection            string
	Line                 *float64
	Odds                 float64
	StakeCents           int64
	PotentialPayoutCents int64
	Status               BetStatus
	GameID               *string // apostas simples
	Legs                 []Leg   // apostas compostas
	SettledAt            *time.Time
	SettleReason         string

	// Campos de props para apostas simples
	PlayerID string // player props
	Stat     string // player props
	Period   *int   // game props por período

	// Metadados de teaser
	TeaserPoints   *float64
	TeaserPushRule *grading.TeaserPushRule

	// Metadados de if-bet / reverse
	IfCondition *grading.IfCondition

	// Metadados de round robin: tamanho dos sub-parlays
	RoundRobinSize *int
}

// Account é a carteira do usuário; mutada somente na transação de liquidação.
type Account struct {
	ID           string
	UserID       string
	BalanceCents int64
	Version      int64
}
