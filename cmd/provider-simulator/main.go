package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/shared/config"
	"github.com/radieske/bet-settlement-platform/internal/shared/logger"
	"github.com/radieske/bet-settlement-platform/internal/shared/metrics"
	"github.com/radieske/bet-settlement-platform/pkg/contracts/events"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "provider_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "provider_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
)

const totalPeriods = 4

// simGame é um jogo simulado que avança por períodos até encerrar.
type simGame struct {
	ExternalID string
	HomeTeam   string
	AwayTeam   string
	StartsAt   time.Time
	Status     string // "scheduled" | "live" | "final"
	Period     int
	HomeScore  int
	AwayScore  int

	// placar acumulado ao fim de cada período já concluído (1-based)
	PeriodHome map[int]int
	PeriodAway map[int]int

	// estatísticas finais por "playerID|stat", geradas no encerramento
	PlayerStats map[string]float64
}

// world guarda o estado simulado compartilhado entre o ticker e a API.
type world struct {
	mu    sync.RWMutex
	games map[string]*simGame
}

var homeRoster = []string{"P_ALLEN", "P_BRYANT", "P_CARTER"}
var awayRoster = []string{"P_DAVIS", "P_EVANS", "P_FOSTER"}
var statNames = []string{"points", "rebounds", "assists"}

var matchups = [][2]string{
	{"Lakers", "Celtics"},
	{"Warriors", "Bulls"},
	{"Heat", "Knicks"},
	{"Suns", "Nets"},
}

func newWorld() *world {
	w := &world{games: make(map[string]*simGame)}
	now := time.Now().UTC()
	for i, m := range matchups {
		id := fmt.Sprintf("EXT_%03d", i+1)
		w.games[id] = &simGame{
			ExternalID:  id,
			HomeTeam:    m[0],
			AwayTeam:    m[1],
			StartsAt:    now.Add(time.Duration(i) * 15 * time.Second),
			Status:      "scheduled",
			PeriodHome:  make(map[int]int),
			PeriodAway:  make(map[int]int),
			PlayerStats: make(map[string]float64),
		}
	}
	return w
}

// tick avança cada jogo um passo e retorna os updates a transmitir.
func (w *world) tick() []events.ScoreUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	var updates []events.ScoreUpdate
	for _, g := range w.games {
		switch g.Status {
		case "scheduled":
			if now.After(g.StartsAt) {
				g.Status = "live"
				g.Period = 1
			} else {
				continue
			}
		case "live":
			g.HomeScore += rand.Intn(9)
			g.AwayScore += rand.Intn(9)
			// 30% de chance de fechar o período a cada tick
			if rand.Intn(100) < 30 {
				g.PeriodHome[g.Period] = g.HomeScore
				g.PeriodAway[g.Period] = g.AwayScore
				if g.Period >= totalPeriods {
					g.Status = "final"
					w.generatePlayerStats(g)
				} else {
					g.Period++
				}
			}
		case "final":
			continue
		}

		home, away := g.HomeScore, g.AwayScore
		updates = append(updates, events.ScoreUpdate{
			EventID:   g.ExternalID,
			HomeTeam:  g.HomeTeam,
			AwayTeam:  g.AwayTeam,
			HomeScore: &home,
			AwayScore: &away,
			Period:    g.Period,
			Status:    g.Status,
			Final:     g.Status == "final",
			UpdatedAt: now,
			Source:    "provider-simulator",
		})
	}
	return updates
}

func (w *world) generatePlayerStats(g *simGame) {
	for _, p := range append(append([]string{}, homeRoster...), awayRoster...) {
		for _, stat := range statNames {
			g.PlayerStats[p+"|"+stat] = float64(rand.Intn(35)) + 0.5*float64(rand.Intn(2))
		}
	}
}

// API REST consultada pelo reconciliador e pelo settler.

type eventView struct {
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"`
	Completed  bool      `json:"completed"`
	HomeScore  *int      `json:"home_score"`
	AwayScore  *int      `json:"away_score"`
	StartsAt   time.Time `json:"starts_at"`
}

func (w *world) listEvents(rw http.ResponseWriter, r *http.Request) {
	from, err1 := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	to, err2 := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		http.Error(rw, "from/to required as RFC3339", http.StatusBadRequest)
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	out := []eventView{}
	for _, g := range w.games {
		if g.StartsAt.Before(from) || g.StartsAt.After(to) {
			continue
		}
		v := eventView{
			ExternalID: g.ExternalID,
			Status:     g.Status,
			Completed:  g.Status == "final",
			StartsAt:   g.StartsAt,
		}
		if g.Status != "scheduled" {
			home, away := g.HomeScore, g.AwayScore
			v.HomeScore, v.AwayScore = &home, &away
		}
		out = append(out, v)
	}
	writeJSON(rw, out)
}

// path: /events/{id}/players/{playerID}/stats/{stat}
// ou    /events/{id}/periods/{n}
func (w *world) eventSubresource(rw http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/events/"), "/")

	w.mu.RLock()
	defer w.mu.RUnlock()

	g, ok := w.games[parts[0]]
	if !ok {
		http.NotFound(rw, r)
		return
	}

	switch {
	case len(parts) == 5 && parts[1] == "players" && parts[3] == "stats":
		// stats só existem depois do encerramento; antes disso, 404
		value, ok := g.PlayerStats[parts[2]+"|"+parts[4]]
		if !ok {
			http.NotFound(rw, r)
			return
		}
		writeJSON(rw, map[string]float64{"value": value})
	case len(parts) == 3 && parts[1] == "periods":
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			http.Error(rw, "invalid period", http.StatusBadRequest)
			return
		}
		home, ok := g.PeriodHome[n]
		if !ok {
			http.NotFound(rw, r)
			return
		}
		writeJSON(rw, map[string]int{"home": home, "away": g.PeriodAway[n]})
	default:
		http.NotFound(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

// Hub de clientes WebSocket do feed de placares.

type clientConn struct {
	id   string
	conn *websocket.Conn
}

type hub struct {
	mu      sync.RWMutex
	clients map[string]*clientConn
	log     *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{clients: make(map[string]*clientConn), log: log}
}

func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent)

	sim := newWorld()
	h := newHub(log)

	// Avança a simulação e transmite os placares a cada 2 segundos
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, up := range sim.tick() {
				if up.Final {
					log.Info("simulated game finished",
						zap.String("event_id", up.EventID),
						zap.Intp("home", up.HomeScore),
						zap.Intp("away", up.AwayScore))
				}
				h.broadcast(up)
			}
		}
	}()

	appMux := http.NewServeMux()
	appMux.HandleFunc("/events", sim.listEvents)
	appMux.HandleFunc("/events/", sim.eventSubresource)
	appMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("provider simulator running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws,/events"))
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
