package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-settlement-platform/internal/jobs"
)

// Server expõe a superfície operacional da liquidação. Tudo que ele faz é
// enfileirar jobs e ler o estado da fila: a execução fica com os workers.
type Server struct {
	log   *zap.Logger
	queue jobs.Store

	// ListLimit limita as listagens de jobs quando a query não informa limit.
	ListLimit int
}

func NewServer(log *zap.Logger, queue jobs.Store) *Server {
	return &Server{log: log, queue: queue, ListLimit: 50}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/settlement/run", s.runSweep)     // POST
	mux.HandleFunc("/settlement/games/", s.runGame)   // POST /settlement/games/{id}
	mux.HandleFunc("/settlement/bets/", s.runBet)     // POST /settlement/bets/{id}
	mux.HandleFunc("/queue/stats", s.queueStats)      // GET
	mux.HandleFunc("/queue/failed", s.queueFailed)    // GET
	mux.HandleFunc("/queue/active", s.queueActive)    // GET
	return mux
}

type enqueueResponse struct {
	JobID    string `json:"job_id,omitempty"`
	Enqueued bool   `json:"enqueued"`
	Detail   string `json:"detail,omitempty"`
}

func (s *Server) runSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.enqueue(w, r, jobs.Enqueue{
		Type:     jobs.TypeSettleAll,
		DedupKey: jobs.KeySettleAll,
		Priority: 5,
	})
}

func (s *Server) runGame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/settlement/games/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "gameId required", http.StatusBadRequest)
		return
	}
	s.enqueue(w, r, jobs.Enqueue{
		Type:     jobs.TypeSettleGame,
		Payload:  jobs.GamePayload{GameID: id},
		DedupKey: jobs.SettleGameKey(id),
		Priority: 7,
	})
}

func (s *Server) runBet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/settlement/bets/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "betId required", http.StatusBadRequest)
		return
	}
	s.enqueue(w, r, jobs.Enqueue{
		Type:     jobs.TypeSettleBet,
		Payload:  jobs.BetPayload{BetID: id},
		DedupKey: jobs.SettleBetKey(id),
		Priority: 10,
	})
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, req jobs.Enqueue) {
	id, enqueued, err := s.queue.Enqueue(r.Context(), req)
	if err != nil {
		s.log.Error("Failed to enqueue job", zap.String("type", string(req.Type)), zap.Error(err))
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	resp := enqueueResponse{JobID: id, Enqueued: enqueued}
	if !enqueued {
		resp.Detail = "an equivalent job is already pending"
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, resp)
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}
	out := make(map[string]int, len(stats))
	for st, n := range stats {
		out[string(st)] = n
	}
	writeJSON(w, out)
}

type jobView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) queueFailed(w http.ResponseWriter, r *http.Request) {
	s.listJobs(w, r, s.queue.FailedJobs)
}

func (s *Server) queueActive(w http.ResponseWriter, r *http.Request) {
	s.listJobs(w, r, s.queue.ActiveJobs)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request, list func(context.Context, int) ([]jobs.Job, error)) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := s.ListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	found, err := list(r.Context(), limit)
	if err != nil {
		http.Error(w, "job listing unavailable", http.StatusInternalServerError)
		return
	}

	views := make([]jobView, 0, len(found))
	for _, j := range found {
		v := jobView{
			ID:        j.ID,
			Type:      string(j.Type),
			Attempts:  j.Attempts,
			LastError: j.LastError,
			UpdatedAt: j.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if len(j.Payload) > 0 {
			var p any
			if err := json.Unmarshal(j.Payload, &p); err == nil {
				v.Payload = p
			}
		}
		views = append(views, v)
	}
	writeJSON(w, views)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
