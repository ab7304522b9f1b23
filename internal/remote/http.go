package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/learnsync/internal/model"
)

// BreakerConfig configures the circuit breaker guarding HTTPGateway.
type BreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// HTTPConfig configures HTTPGateway.
type HTTPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 1 << 20

// HTTPGateway applies items by POSTing them to {BaseURL}/sync/{type}.
//
// Status mapping:
//   - 200, 201, 204: Applied
//   - 409 with a SyncItem body: Conflict
//   - anything else, or a transport failure: Error
//
// Transport failures and 5xx responses count against the circuit breaker.
// While the breaker is open every Apply fails fast with an Error outcome.
type HTTPGateway struct {
	base   *url.URL
	client *http.Client
	cb     *gobreaker.CircuitBreaker
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) {
		g.client = c
	}
}

// NewHTTPGateway validates cfg and returns a gateway.
func NewHTTPGateway(cfg HTTPConfig, opts ...HTTPOption) (*HTTPGateway, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("http gateway: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("http gateway: parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("http gateway: unsupported scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g := &HTTPGateway{
		base:   base,
		client: &http.Client{Timeout: timeout},
		cb:     newBreaker("remote-gateway", cfg.Breaker),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// newBreaker applies defaults and builds the breaker.
func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// State returns the breaker state ("closed", "half-open" or "open").
func (g *HTTPGateway) State() string {
	return g.cb.State().String()
}

// Apply implements Gateway.
func (g *HTTPGateway) Apply(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome {
	body, err := json.Marshal(item)
	if err != nil {
		return Failed(fmt.Sprintf("encode item: %v", err))
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.post(ctx, t, body)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Failed("circuit breaker open")
	case err != nil:
		return Failed(err.Error())
	}

	out := res.(Outcome)
	if out.Kind == OutcomeConflict && out.Remote.Type == "" {
		out.Remote.Type = t
	}
	return out
}

// post sends one request. Errors are breaker failures; everything else is
// returned as an Outcome.
func (g *HTTPGateway) post(ctx context.Context, t model.ItemType, body []byte) (Outcome, error) {
	endpoint := g.base.JoinPath("sync", string(t))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("post %s: %w", endpoint.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK,
		resp.StatusCode == http.StatusCreated,
		resp.StatusCode == http.StatusNoContent:
		return Applied(), nil

	case resp.StatusCode == http.StatusConflict:
		var remote model.SyncItem
		if err := json.Unmarshal(data, &remote); err != nil {
			return Failed(fmt.Sprintf("conflict response without remote item: %v", err)), nil
		}
		return Conflicted(remote), nil

	case resp.StatusCode >= 500:
		return Outcome{}, fmt.Errorf("server error: %s", statusText(resp.StatusCode, data))

	default:
		return Failed(statusText(resp.StatusCode, data)), nil
	}
}

func statusText(code int, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		return fmt.Sprintf("HTTP %d", code)
	}
	return fmt.Sprintf("HTTP %d: %s", code, msg)
}
