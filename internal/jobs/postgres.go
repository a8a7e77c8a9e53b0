package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore implementa Store sobre a tabela jobs.
//
// A deduplicação usa o índice parcial único jobs_dedup_live
// (dedup_key WHERE status IN ('WAITING','ACTIVE')): o ON CONFLICT do
// Enqueue colapsa enfileiramentos repetidos enquanto o job anterior
// ainda não terminou. O Claim usa FOR UPDATE SKIP LOCKED para que
// vários workers disputem a fila sem se bloquear.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, req Enqueue) (string, bool, error) {
	var payload []byte
	if req.Payload != nil {
		var err error
		payload, err = json.Marshal(req.Payload)
		if err != nil {
			return "", false, fmt.Errorf("marshal payload: %w", err)
		}
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 5
	}

	id := uuid.New().String()
	runAt := time.Now().Add(req.Delay)

	query := `
		INSERT INTO jobs (id, type, payload, dedup_key, priority, status, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'WAITING', 0, $6, $7, NOW(), NOW())
		ON CONFLICT (dedup_key) WHERE status IN ('WAITING', 'ACTIVE') DO NOTHING`

	res, err := s.db.ExecContext(ctx, query,
		id, string(req.Type), payload, req.DedupKey, req.Priority, req.MaxAttempts, runAt)
	if err != nil {
		return "", false, fmt.Errorf("enqueue job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		// colapsou com um job pendente da mesma chave
		return "", false, nil
	}
	return id, true, nil
}

func (s *PostgresStore) Claim(ctx context.Context) (*Job, error) {
	query := `
		UPDATE jobs SET status = 'ACTIVE', attempts = attempts + 1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'WAITING' AND run_at <= NOW()
			ORDER BY priority DESC, run_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, payload, dedup_key, priority, status, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at, updated_at`

	var j Job
	var typ, status string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&j.ID, &typ, &j.Payload, &j.DedupKey, &j.Priority, &status,
		&j.Attempts, &j.MaxAttempts, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	j.Type = Type(typ)
	j.Status = Status(status)
	return &j, nil
}

func (s *PostgresStore) Complete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'COMPLETED', updated_at = NOW() WHERE id = $1 AND status = 'ACTIVE'`, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (s *PostgresStore) RetryLater(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'WAITING', run_at = $2, last_error = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'ACTIVE'`, id, runAt, truncateErr(lastErr))
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Fail(ctx context.Context, id string, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'FAILED', last_error = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'ACTIVE'`, id, truncateErr(lastErr))
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (s *PostgresStore) RequeueStalled(ctx context.Context, activeOlderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-activeOlderThan)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'WAITING', updated_at = NOW()
		 WHERE status = 'ACTIVE' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("requeue stalled jobs: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN ('COMPLETED', 'FAILED') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

func (s *PostgresStore) FailedJobs(ctx context.Context, limit int) ([]Job, error) {
	return s.listByStatus(ctx, `
		SELECT id, type, payload, dedup_key, priority, status, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at, updated_at
		FROM jobs WHERE status = 'FAILED'
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
}

func (s *PostgresStore) ActiveJobs(ctx context.Context, limit int) ([]Job, error) {
	return s.listByStatus(ctx, `
		SELECT id, type, payload, dedup_key, priority, status, attempts, max_attempts, run_at, COALESCE(last_error, ''), created_at, updated_at
		FROM jobs WHERE status = 'ACTIVE'
		ORDER BY updated_at ASC
		LIMIT $1`, limit)
}

func (s *PostgresStore) listByStatus(ctx context.Context, query string, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		var typ, status string
		if err := rows.Scan(&j.ID, &typ, &j.Payload, &j.DedupKey, &j.Priority, &status,
			&j.Attempts, &j.MaxAttempts, &j.RunAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Type = Type(typ)
		j.Status = Status(status)
		out = append(out, j)
	}
	return out, rows.Err()
}

// truncateErr limita o erro registrado ao tamanho da coluna.
func truncateErr(s string) string {
	if len(s) > 1000 {
		return s[:1000]
	}
	return s
}
