package scorefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

// ScorePublisher abstrai o destino dos placares recebidos do provedor.
type ScorePublisher interface {
	Publish(ctx context.Context, e events.ScoreUpdate) error
}

// WSClient consome o feed WebSocket de placares do provedor e repassa
// cada atualização para o Kafka.
type WSClient struct {
	URL       string
	Log       *zap.Logger
	Publisher ScorePublisher
}

// Start mantém a conexão viva, reconectando com pausa em caso de queda.
func (c *WSClient) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping score feed client")
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("connection closed", zap.Error(err))
				time.Sleep(3 * time.Second)
			}
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to provider score feed", zap.String("url", c.URL))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Log.Error("read message failed", zap.Error(err))
			return err
		}

		var update events.ScoreUpdate
		if err := json.Unmarshal(message, &update); err != nil {
			c.Log.Warn("invalid message", zap.Error(err))
			continue
		}
		if update.EventID == "" {
			c.Log.Warn("score update without event id, dropping")
			continue
		}

		if err := c.Publisher.Publish(ctx, update); err != nil {
			c.Log.Error("failed to publish to Kafka", zap.Error(err))
		}
	}
}
