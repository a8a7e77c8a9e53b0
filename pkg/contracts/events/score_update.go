package events

import "time"

// Evento publicado no tópico "score_updates" pelo score-ingest-worker.
// EventID é o identificador do provedor externo, não o id interno do jogo.
type ScoreUpdate struct {
	EventID   string    `json:"event_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore *int      `json:"home_score"`
	AwayScore *int      `json:"away_score"`
	Period    int       `json:"period"`
	Status    string    `json:"status"` // "scheduled" | "live" | "final"
	Final     bool      `json:"final"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}
