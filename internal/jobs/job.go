package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Tipos de job do pipeline de liquidação.
type Type string

const (
	TypeSyncAndSettle Type = "sync-and-settle"
	TypeSettleGame    Type = "settle-game"
	TypeSettleBet     Type = "settle-bet"
	TypeSettleAll     Type = "settle-all"
	TypeCleanup       Type = "cleanup"
)

// Ciclo de vida: WAITING -> ACTIVE -> COMPLETED | FAILED.
// FAILED é o dead-letter: job que esgotou as tentativas, retido para
// observabilidade em vez de descartado.
type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Job é a unidade durável de trabalho agendado ou sob demanda.
type Job struct {
	ID          string
	Type        Type
	Payload     json.RawMessage
	DedupKey    string
	Priority    int // maior executa antes
	Status      Status
	Attempts    int
	MaxAttempts int
	RunAt       time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payloads dos jobs direcionados.
type GamePayload struct {
	GameID string `json:"game_id"`
}

type BetPayload struct {
	BetID string `json:"bet_id"`
}

// Chaves de deduplicação: dois enqueues para o mesmo alvo lógico colapsam
// em um job pendente só. É a primeira defesa contra liquidação dupla.
const (
	KeySyncAndSettle = "sync-and-settle"
	KeySettleAll     = "settle-all"
	KeyCleanup       = "cleanup"
)

func SettleGameKey(gameID string) string { return "settle-game-" + gameID }
func SettleBetKey(betID string) string   { return "settle-bet-" + betID }

// Result é o desfecho de um handler. Failed é sinalizado por erro no retorno:
// só erro aciona o retry/backoff da fila; Deferred completa o job e deixa a
// próxima varredura retentar o alvo.
type Result int

const (
	Done Result = iota
	Deferred
)

func (r Result) String() string {
	if r == Deferred {
		return "deferred"
	}
	return "done"
}

// Handler executa um job. Retorno de erro = falha transitória (retry).
type Handler func(ctx context.Context, job *Job) (Result, error)

// ErrNoJob: fila vazia no momento.
var ErrNoJob = errors.New("no job available")

// Enqueue descreve um pedido de enfileiramento.
type Enqueue struct {
	Type        Type
	Payload     any // serializado em JSON; pode ser nil
	DedupKey    string
	Priority    int
	MaxAttempts int
	Delay       time.Duration
}

// Store é o armazenamento durável da fila. Em produção, Postgres;
// nos testes, a implementação em memória.
type Store interface {
	// Enqueue insere um job; retorna (id, false, nil) quando a chave de
	// deduplicação colapsou com um job ainda pendente/ativo.
	Enqueue(ctx context.Context, req Enqueue) (id string, enqueued bool, err error)
	// Claim reivindica o próximo job elegível (prioridade, depois run_at).
	// Retorna ErrNoJob com a fila vazia.
	Claim(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, id string) error
	// RetryLater devolve o job para WAITING com novo horário e erro registrado.
	RetryLater(ctx context.Context, id string, runAt time.Time, lastErr string) error
	// Fail move o job para o histórico de falhas (dead-letter).
	Fail(ctx context.Context, id string, lastErr string) error
	// RequeueStalled devolve para WAITING jobs ACTIVE mais velhos que o
	// timeout de visibilidade (worker morto no meio da execução).
	RequeueStalled(ctx context.Context, activeOlderThan time.Duration) (int, error)
	// Prune apaga jobs terminais mais velhos que a retenção.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) (map[Status]int, error)
	FailedJobs(ctx context.Context, limit int) ([]Job, error)
	// ActiveJobs lista os jobs em execução, mais antigos primeiro.
	ActiveJobs(ctx context.Context, limit int) ([]Job, error)
}

// Backoff calcula o atraso exponencial da tentativa n (1-based),
// limitado a 30 minutos.
func Backoff(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= 30*time.Minute {
			return 30 * time.Minute
		}
	}
	return d
}
