// Package graphql is a small typed request executor for the Storefront GraphQL API.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	models "storefront-cart/model"
)

const tokenHeader = "X-Shopify-Storefront-Access-Token"

// Executor runs one GraphQL document.
type Executor interface {
	Execute(ctx context.Context, document string, variables map[string]any) (*Response, error)
}

// Response is the GraphQL envelope. Errors holds top-level errors only;
// mutation userErrors live inside Data.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// Error is a top-level GraphQL error.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Code returns extensions.code when the server set one.
func (e Error) Code() string {
	if c, ok := e.Extensions["code"].(string); ok {
		return c
	}
	return ""
}

// Messages joins the top-level error messages.
func (r *Response) Messages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Config holds client configuration.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client executes documents over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a client. Missing endpoint or token is a configuration error.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, models.NewConfigurationError("graphql.New", "endpoint is required")
	}
	if cfg.Token == "" {
		return nil, models.NewConfigurationError("graphql.New", "storefront access token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Execute posts the document and decodes the envelope. HTTP failures,
// timeouts and undecodable bodies are transport errors; GraphQL errors are
// returned inside the Response for the caller to classify.
func (c *Client) Execute(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	const op = "graphql.Execute"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request{Query: document, Variables: variables})
	if err != nil {
		return nil, models.NewUnknownError(op, "marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.NewUnknownError(op, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenHeader, c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return nil, models.NewTransportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewTransportError(op, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("graphql request",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, models.NewConfigurationError(op, fmt.Sprintf("storefront token rejected (status %d)", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewTransportError(op, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, models.NewTransportError(op, fmt.Errorf("parsing response: %w", err))
	}
	if len(out.Data) == 0 && len(out.Errors) == 0 {
		return nil, models.NewTransportError(op, errors.New("response has neither data nor errors"))
	}
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
