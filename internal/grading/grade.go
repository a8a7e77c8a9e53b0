package grading

import "errors"

// Result é o desfecho de uma aposta ou perna: vitória, derrota ou push.
type Result string

const (
	Won  Result = "WON"
	Lost Result = "LOST"
	Push Result = "PUSH"
)

// Grade carrega o desfecho e o motivo legível dele.
type Grade struct {
	Result Result
	Reason string
}

var (
	// ErrStatUnavailable: estatística de jogador ausente. O settler deve adiar
	// a liquidação em vez de tratar como push silencioso.
	ErrStatUnavailable = errors.New("player stat unavailable")

	// ErrMissingLine: aposta que exige linha veio sem. Falha de integridade,
	// não de prontidão; a aposta fica pendente para intervenção manual.
	ErrMissingLine = errors.New("bet line missing")
)

func won(reason string) Grade  { return Grade{Result: Won, Reason: reason} }
func lost(reason string) Grade { return Grade{Result: Lost, Reason: reason} }
func push(reason string) Grade { return Grade{Result: Push, Reason: reason} }
