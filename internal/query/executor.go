package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Executor issues GraphQL queries and mutations against the remote backend
// with bounded retry. Callers treat it as an opaque RPC boundary.
type Executor struct {
	endpoint    string
	adminSecret string
	maxRetries  int
	retryDelay  time.Duration
	client      *http.Client
	logger      *zap.Logger
}

// Config carries the executor's connection and retry settings.
type Config struct {
	Endpoint    string
	AdminSecret string
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewExecutor creates a query executor. Zero retry/delay values fall back to
// 3 attempts with a fixed 2s inter-attempt delay.
func NewExecutor(cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Executor{
		endpoint:    cfg.Endpoint,
		adminSecret: cfg.AdminSecret,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// Execute runs a query or mutation with up to MaxRetries attempts and a fixed
// delay between attempts. The last error is returned after exhaustion.
// Headers are merged on top of the admin-secret header.
func (e *Executor) Execute(ctx context.Context, query string, variables map[string]any, headers map[string]string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		data, err := e.attempt(ctx, query, variables, headers)
		if err == nil {
			return data, nil
		}
		lastErr = err
		e.logger.Warn("query execution failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxRetries),
			zap.Error(err),
		)

		if attempt < e.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.retryDelay):
			}
		}
	}

	e.logger.Error("query execution failed after all attempts",
		zap.Int("attempts", e.maxRetries),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

func (e *Executor) attempt(ctx context.Context, query string, variables map[string]any, headers map[string]string) (json.RawMessage, error) {
	body, err := json.Marshal(request{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.adminSecret != "" {
		req.Header.Set("x-hasura-admin-secret", e.adminSecret)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", parsed.Errors[0].Message)
	}

	return parsed.Data, nil
}
