package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Contrato mínimo com o provedor externo de placares. Ausência de dado é
// distinguível de erro: ausência => adiar liquidação; erro => retry do job.
var (
	ErrStatUnavailable   = errors.New("player stat not available yet")
	ErrPeriodUnavailable = errors.New("period score not available")
)

// Event é um evento reportado pelo provedor. Vários provedores sinalizam
// encerramento de formas diferentes; qualquer flag conta como encerrado.
type Event struct {
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"` // "scheduled" | "live" | "final" | "closed"
	Completed  bool      `json:"completed"`
	HomeScore  *int      `json:"home_score"`
	AwayScore  *int      `json:"away_score"`
	StartsAt   time.Time `json:"starts_at"`
}

// Finished indica se o provedor considera o evento encerrado,
// por qualquer uma das flags que ele usa.
func (e Event) Finished() bool {
	return e.Completed || e.Status == "final" || e.Status == "closed"
}

// Client é a interface consumida pelo reconciliador e pelo settler.
type Client interface {
	// EventsBetween busca eventos com início dentro de [from, to].
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)
	// PlayerStat busca uma estatística final de jogador.
	// Retorna ErrStatUnavailable quando o provedor ainda não a publicou.
	PlayerStat(ctx context.Context, eventExternalID, playerID, stat string) (float64, error)
	// PeriodScore busca o placar de um período específico.
	// Retorna ErrPeriodUnavailable quando o provedor não o expõe.
	PeriodScore(ctx context.Context, eventExternalID string, period int) (home, away int, err error)
}

// HTTPClient implementa Client contra a API REST do provedor,
// com timeout limitado em toda chamada.
type HTTPClient struct {
	base string
	hc   *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base: baseURL,
		hc:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	u := fmt.Sprintf("%s/events?from=%s&to=%s", c.base,
		url.QueryEscape(from.UTC().Format(time.RFC3339)),
		url.QueryEscape(to.UTC().Format(time.RFC3339)))

	var out []Event
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) PlayerStat(ctx context.Context, eventExternalID, playerID, stat string) (float64, error) {
	u := fmt.Sprintf("%s/events/%s/players/%s/stats/%s", c.base,
		url.PathEscape(eventExternalID), url.PathEscape(playerID), url.PathEscape(stat))

	var out struct {
		Value float64 `json:"value"`
	}
	err := c.getJSON(ctx, u, &out)
	if errors.Is(err, errNotFound) {
		return 0, ErrStatUnavailable
	}
	if err != nil {
		return 0, fmt.Errorf("fetch player stat: %w", err)
	}
	return out.Value, nil
}

func (c *HTTPClient) PeriodScore(ctx context.Context, eventExternalID string, period int) (int, int, error) {
	u := fmt.Sprintf("%s/events/%s/periods/%s", c.base,
		url.PathEscape(eventExternalID), strconv.Itoa(period))

	var out struct {
		Home int `json:"home"`
		Away int `json:"away"`
	}
	err := c.getJSON(ctx, u, &out)
	if errors.Is(err, errNotFound) {
		return 0, 0, ErrPeriodUnavailable
	}
	if err != nil {
		return 0, 0, fmt.Errorf("fetch period score: %w", err)
	}
	return out.Home, out.Away, nil
}

// errNotFound separa "o dado não existe" (404) de falha transitória.
var errNotFound = errors.New("not found")

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return errors.New("provider http " + resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
