package scorefeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/jobs"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// MessageReader é satisfeito por *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter é satisfeito por *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ScoreApplier aplica uma atualização de placar ao estado dos jogos.
// Implementado pelo Reconciler, único mutador de Game do sistema.
type ScoreApplier interface {
	ApplyScoreUpdate(ctx context.Context, ev events.ScoreUpdate) (gameID string, finished bool, err error)
}

// Processor consome o tópico de placares: atualiza o cache, aplica o placar
// ao jogo e, quando o jogo encerra, enfileira a liquidação dele. Mensagens
// indecodificáveis vão para a DLQ em vez de travar a partição.
type Processor struct {
	Log     *zap.Logger
	Reader  MessageReader
	DLQ     MessageWriter
	Cache   *ScoreCache
	Applier ScoreApplier
	Queue   jobs.Store
}

// Run roda até o contexto ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}
		metrics.ScoreUpdatesConsumed.Inc()

		var ev events.ScoreUpdate
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.EventID == "" {
			p.Log.Warn("invalid score update, sending to DLQ", zap.Error(err))
			p.sendToDLQ(ctx, m)
			continue
		}

		if p.Cache != nil {
			if err := p.Cache.SetCurrent(ctx, ev); err != nil {
				p.Log.Warn("redis set failed", zap.Error(err))
				// cache é best-effort; segue o processamento
			}
		}

		gameID, finished, err := p.Applier.ApplyScoreUpdate(ctx, ev)
		if err != nil {
			p.Log.Error("failed to apply score update",
				zap.String("event_id", ev.EventID), zap.Error(err))
			continue
		}
		if gameID == "" {
			// evento que não acompanhamos
			continue
		}

		if finished {
			_, enqueued, err := p.Queue.Enqueue(ctx, jobs.Enqueue{
				Type:     jobs.TypeSettleGame,
				Payload:  jobs.GamePayload{GameID: gameID},
				DedupKey: jobs.SettleGameKey(gameID),
				Priority: 8,
			})
			if err != nil {
				p.Log.Error("failed to enqueue game settlement",
					zap.String("game_id", gameID), zap.Error(err))
				continue
			}
			if enqueued {
				p.Log.Info("game finished, settlement enqueued",
					zap.String("game_id", gameID),
					zap.String("event_id", ev.EventID))
			}
		}
	}
}

func (p *Processor) sendToDLQ(ctx context.Context, m kafka.Message) {
	if p.DLQ == nil {
		return
	}
	dead := kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}
	if err := p.DLQ.WriteMessages(ctx, dead); err != nil {
		p.Log.Error("failed to write to DLQ", zap.Error(err))
	}
}
