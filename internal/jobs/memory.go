package jobs

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implementa Store em memória, com a mesma semântica de
// deduplicação e claim do PostgresStore. Serve os testes e execuções
// locais sem banco.
type MemoryStore struct {
	mu          sync.Mutex
	jobs        map[string]*Job
	failedMax   int
	failedOrder []string // ids FAILED, mais recente primeiro
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job), failedMax: 100}
}

// SetFailedHistoryMax limita quantos jobs FAILED ficam retidos.
func (s *MemoryStore) SetFailedHistoryMax(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedMax = n
}

func (s *MemoryStore) Enqueue(_ context.Context, req Enqueue) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.DedupKey != "" {
		for _, j := range s.jobs {
			if j.DedupKey == req.DedupKey && (j.Status == StatusWaiting || j.Status == StatusActive) {
				return "", false, nil
			}
		}
	}

	var payload json.RawMessage
	if req.Payload != nil {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return "", false, err
		}
		payload = b
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 5
	}

	now := time.Now()
	j := &Job{
		ID:          uuid.New().String(),
		Type:        req.Type,
		Payload:     payload,
		DedupKey:    req.DedupKey,
		Priority:    req.Priority,
		Status:      StatusWaiting,
		MaxAttempts: req.MaxAttempts,
		RunAt:       now.Add(req.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.jobs[j.ID] = j
	return j.ID, true, nil
}

func (s *MemoryStore) Claim(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var eligible []*Job
	for _, j := range s.jobs {
		if j.Status == StatusWaiting && !j.RunAt.After(now) {
			eligible = append(eligible, j)
		}
	}
	if len(eligible) == 0 {
		return nil, ErrNoJob
	}
	sort.Slice(eligible, func(a, b int) bool {
		if eligible[a].Priority != eligible[b].Priority {
			return eligible[a].Priority > eligible[b].Priority
		}
		return eligible[a].RunAt.Before(eligible[b].RunAt)
	})

	j := eligible[0]
	j.Status = StatusActive
	j.Attempts++
	j.UpdatedAt = now
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.Status == StatusActive {
		j.Status = StatusCompleted
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) RetryLater(_ context.Context, id string, runAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.Status == StatusActive {
		j.Status = StatusWaiting
		j.RunAt = runAt
		j.LastError = lastErr
		j.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) Fail(_ context.Context, id string, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != StatusActive {
		return nil
	}
	j.Status = StatusFailed
	j.LastError = lastErr
	j.UpdatedAt = time.Now()

	s.failedOrder = append([]string{id}, s.failedOrder...)
	for len(s.failedOrder) > s.failedMax {
		last := s.failedOrder[len(s.failedOrder)-1]
		s.failedOrder = s.failedOrder[:len(s.failedOrder)-1]
		delete(s.jobs, last)
	}
	return nil
}

func (s *MemoryStore) RequeueStalled(_ context.Context, activeOlderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-activeOlderThan)
	n := 0
	for _, j := range s.jobs {
		if j.Status == StatusActive && j.UpdatedAt.Before(cutoff) {
			j.Status = StatusWaiting
			j.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for id, j := range s.jobs {
		if (j.Status == StatusCompleted || j.Status == StatusFailed) && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	kept := s.failedOrder[:0]
	for _, id := range s.failedOrder {
		if _, ok := s.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	s.failedOrder = kept
	return n, nil
}

func (s *MemoryStore) Stats(_ context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[Status]int)
	for _, j := range s.jobs {
		stats[j.Status]++
	}
	return stats, nil
}

func (s *MemoryStore) FailedJobs(_ context.Context, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, id := range s.failedOrder {
		if len(out) >= limit {
			break
		}
		if j, ok := s.jobs[id]; ok {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (s *MemoryStore) ActiveJobs(_ context.Context, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, j := range s.jobs {
		if j.Status == StatusActive {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UpdatedAt.Before(out[b].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get retorna uma cópia do job; usado em testes.
func (s *MemoryStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}
