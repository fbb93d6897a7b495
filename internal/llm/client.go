// Package llm is the HTTP transport glue in front of the stream decoder.
// It builds requests for the configured dialect and feeds raw response
// bytes through a per-stream decoder.
package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/opendelta/opendelta/internal/stream"
)

// APIError represents a non-success HTTP response from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the gateway base URL.
	BaseURL string
	// APIKey authenticates requests; placement depends on the dialect.
	APIKey string
	// Dialect selects endpoint, headers, and stream payload schema.
	Dialect stream.Dialect
	// Timeout bounds each request.
	Timeout time.Duration
	// ReasoningOpen overrides the reasoning open marker.
	ReasoningOpen string
	// ReasoningClose overrides the reasoning close marker.
	ReasoningClose string
	// Logger receives decode warnings. A nil logger disables logging.
	Logger *zap.Logger
}

// Client talks to one streaming text-generation gateway.
type Client struct {
	// baseURL points at the gateway.
	baseURL string
	// apiKey is the credential for the gateway.
	apiKey string
	// dialect is fixed for the client's lifetime.
	dialect stream.Dialect
	// reasoningOpen and reasoningClose configure per-stream segmenters.
	reasoningOpen  string
	reasoningClose string
	// httpClient executes requests with timeouts.
	httpClient *http.Client
	// log receives decode warnings.
	log *zap.Logger
}

// NewClient constructs a client for the configured dialect.
func NewClient(cfg ClientConfig) (*Client, error) {
	if !cfg.Dialect.Valid() {
		return nil, fmt.Errorf("unknown dialect %q", cfg.Dialect)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		dialect:        cfg.Dialect,
		reasoningOpen:  cfg.ReasoningOpen,
		reasoningClose: cfg.ReasoningClose,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		log:            logger,
	}, nil
}

// endpoint returns the completion endpoint for the dialect.
func (c *Client) endpoint() string {
	switch c.dialect {
	case stream.DialectAnthropic:
		return c.baseURL + "/v1/messages"
	default:
		if strings.HasSuffix(c.baseURL, "/chat/completions") {
			return c.baseURL
		}
		return c.baseURL + "/chat/completions"
	}
}

// setHeaders applies content type and dialect-specific auth headers.
func (c *Client) setHeaders(httpReq *http.Request) {
	httpReq.Header.Set("Content-Type", "application/json")
	switch c.dialect {
	case stream.DialectAnthropic:
		if c.apiKey != "" {
			httpReq.Header.Set("x-api-key", c.apiKey)
		}
		httpReq.Header.Set("anthropic-version", "2023-06-01")
	default:
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
	}
}

// newDecoder builds the per-stream decoder for one request.
func (c *Client) newDecoder() (*stream.Decoder, error) {
	return stream.NewDecoder(stream.Config{
		Dialect:        c.dialect,
		ReasoningOpen:  c.reasoningOpen,
		ReasoningClose: c.reasoningClose,
		Logger:         c.log,
	})
}
