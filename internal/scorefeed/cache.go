package scorefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// ScoreCache guarda o último placar conhecido de cada jogo no Redis.
// É leitura rápida para dashboards; a fonte da verdade continua o Postgres.
type ScoreCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewScoreCache(c *redis.Client, ttl time.Duration) *ScoreCache {
	return &ScoreCache{Client: c, TTL: ttl}
}

func key(eventID string) string { return "score:current:" + eventID }

func (r *ScoreCache) SetCurrent(ctx context.Context, e events.ScoreUpdate) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.EventID), b, r.TTL).Err()
}
