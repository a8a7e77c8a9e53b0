package topics

const (
	// Scores
	ScoreUpdates = "score_updates"

	// Settlement
	BetSettled = "bet_settled"

	// DLQs
	ScoreUpdatesDLQ = "score_updates_dlq"
)
