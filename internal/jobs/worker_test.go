package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWorker(store Store, handlers map[Type]Handler) *Worker {
	w := NewWorker(zap.NewNop(), store, handlers, 1, 100, time.Minute)
	w.pollInterval = 5 * time.Millisecond
	return w
}

// runOne reivindica e executa um único job, sem o loop de polling.
func runOne(t *testing.T, w *Worker, store Store) {
	t.Helper()
	j, err := store.Claim(context.Background())
	require.NoError(t, err)
	w.execute(context.Background(), j)
}

func TestWorkerCompletesSuccessfulJob(t *testing.T) {
	store := NewMemoryStore()
	done := 0
	handlers := map[Type]Handler{
		TypeSettleAll: func(context.Context, *Job) (Result, error) {
			done++
			return Done, nil
		},
	}
	w := newTestWorker(store, handlers)

	id, _, err := store.Enqueue(context.Background(), Enqueue{Type: TypeSettleAll})
	require.NoError(t, err)

	runOne(t, w, store)

	assert.Equal(t, 1, done)
	j, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, j.Status)
}

func TestWorkerCompletesDeferredJob(t *testing.T) {
	store := NewMemoryStore()
	handlers := map[Type]Handler{
		TypeSettleBet: func(context.Context, *Job) (Result, error) {
			return Deferred, nil
		},
	}
	w := newTestWorker(store, handlers)

	id, _, err := store.Enqueue(context.Background(), Enqueue{Type: TypeSettleBet})
	require.NoError(t, err)

	runOne(t, w, store)

	// Deferred completa o job; a próxima varredura retenta o alvo
	j, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, j.Status)
}

func TestWorkerRetriesFailedJobWithBackoff(t *testing.T) {
	store := NewMemoryStore()
	handlers := map[Type]Handler{
		TypeSettleGame: func(context.Context, *Job) (Result, error) {
			return Done, errors.New("provider timeout")
		},
	}
	w := newTestWorker(store, handlers)

	id, _, err := store.Enqueue(context.Background(), Enqueue{Type: TypeSettleGame, MaxAttempts: 3})
	require.NoError(t, err)

	runOne(t, w, store)

	j, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Equal(t, "provider timeout", j.LastError)
	assert.True(t, j.RunAt.After(time.Now()), "retry must be scheduled in the future")
}

func TestWorkerMovesExhaustedJobToFailed(t *testing.T) {
	store := NewMemoryStore()
	handlers := map[Type]Handler{
		TypeSettleGame: func(context.Context, *Job) (Result, error) {
			return Done, errors.New("broken payload")
		},
	}
	w := newTestWorker(store, handlers)

	id, _, err := store.Enqueue(context.Background(), Enqueue{Type: TypeSettleGame, MaxAttempts: 1})
	require.NoError(t, err)

	runOne(t, w, store)

	j, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, "broken payload", j.LastError)

	failed, err := store.FailedJobs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
}

func TestWorkerFailsJobWithUnknownType(t *testing.T) {
	store := NewMemoryStore()
	w := newTestWorker(store, map[Type]Handler{})

	id, _, err := store.Enqueue(context.Background(), Enqueue{Type: Type("bogus")})
	require.NoError(t, err)

	runOne(t, w, store)

	j, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, j.Status)
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	store := NewMemoryStore()
	processed := make(chan struct{}, 1)
	handlers := map[Type]Handler{
		TypeSettleAll: func(context.Context, *Job) (Result, error) {
			select {
			case processed <- struct{}{}:
			default:
			}
			return Done, nil
		},
	}
	w := newTestWorker(store, handlers)

	_, _, err := store.Enqueue(context.Background(), Enqueue{Type: TypeSettleAll})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process the queued job")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
