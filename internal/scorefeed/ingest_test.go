package scorefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

type capturePublisher struct {
	got chan events.ScoreUpdate
}

func (p *capturePublisher) Publish(_ context.Context, e events.ScoreUpdate) error {
	p.got <- e
	return nil
}

func TestWSClientForwardsScoreUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// uma mensagem inválida (deve ser descartada) e uma válida
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{broken"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event_id":"EXT_9","final":true}`))

		// segura a conexão até o cliente desistir
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	pub := &capturePublisher{got: make(chan events.ScoreUpdate, 2)}
	client := &WSClient{
		URL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		Log:       zap.NewNop(),
		Publisher: pub,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	select {
	case ev := <-pub.got:
		assert.Equal(t, "EXT_9", ev.EventID)
		assert.True(t, ev.Final)
	case <-time.After(2 * time.Second):
		t.Fatal("score update was not forwarded")
	}
}
