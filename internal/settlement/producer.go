package settlement

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// Producer publica liquidações no tópico bet_settled e replica no canal
// Redis de broadcast (consumidores de tempo real, dashboards).
type Producer struct {
	Writer  *kafka.Writer
	Rdb     *redis.Client
	Channel string
}

func NewProducer(w *kafka.Writer, rdb *redis.Client, channel string) *Producer {
	return &Producer{Writer: w, Rdb: rdb, Channel: channel}
}

func (p *Producer) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.BetID), Value: b}); err != nil {
		return err
	}

	if p.Rdb != nil && p.Channel != "" {
		return p.Rdb.Publish(ctx, p.Channel, b).Err()
	}
	return nil
}
