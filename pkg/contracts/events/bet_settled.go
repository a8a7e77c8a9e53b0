package events

import "time"

// Evento emitido pelo settlement-worker após liquidar uma aposta.
type BetSettled struct {
	BetID       string    `json:"bet_id"`
	UserID      string    `json:"user_id"`
	Result      string    `json:"result"` // "WON" | "LOST" | "PUSH"
	PayoutCents int64     `json:"payout_cents"`
	Reason      string    `json:"reason,omitempty"`
	Ts          time.Time `json:"ts"`
}
