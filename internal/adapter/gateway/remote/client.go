// Package remote is the HTTP+JSON transport to the server of record.
package remote

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

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/journeygrid/journeygrid/internal/application/port/output"
	"github.com/journeygrid/journeygrid/internal/domain/model/journal"
	"github.com/journeygrid/journeygrid/internal/domain/model/journey"
)

const (
	apiPrefix = "/api/v1"

	DefaultTimeout         = 15 * time.Second
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second

	maxErrorBody = 64 << 10
)

// TokenSource returns the bearer token for the next request; "" sends none
type TokenSource func() string

// StaticToken returns a TokenSource that always yields token
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Config configures the client
type Config struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures consecutive transport or server failures open the breaker
	BreakerFailures uint32
	// BreakerTimeout is how long an open breaker refuses calls before probing again
	BreakerTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client implements output.RemoteGateway. Calls are never retried; a circuit
// breaker fails them fast while the server keeps failing.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	journeys *store[journey.Journey]
	journals *store[journal.Journal]
}

var _ output.RemoteGateway = (*Client)(nil)

// NewClient creates a client for the server at cfg.BaseURL
func NewClient(cfg Config, token TokenSource, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("server url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
	if token == nil {
		token = StaticToken("")
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		token:   token,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := cfg.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "server-of-record",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// rejected requests say nothing about the server's health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var re *output.RemoteError
			return errors.As(err, &re) && !re.Temporary()
		},
	})

	c.journeys = &store[journey.Journey]{client: c, path: apiPrefix + "/journeys"}
	c.journals = &store[journal.Journal]{client: c, path: apiPrefix + "/journals"}
	return c, nil
}

// Journeys returns the journey endpoints
func (c *Client) Journeys() output.RemoteStore[journey.Journey] { return c.journeys }

// Journals returns the journal endpoints
func (c *Client) Journals() output.RemoteStore[journal.Journal] { return c.journals }

type linkRequest struct {
	AnonymousToken string `json:"anonymousToken"`
}

type linkResponse struct {
	Moved int `json:"moved"`
}

// LinkAccount asks the server to move the anonymous identity's records to the caller
func (c *Client) LinkAccount(ctx context.Context, anonymousToken string) (int, error) {
	var resp linkResponse
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/account/link", linkRequest{AnonymousToken: anonymousToken}, &resp); err != nil {
		return 0, err
	}
	return resp.Moved, nil
}

// Ping checks the server's health endpoint
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// IssueAnonymousToken requests a token for a fresh anonymous identity
func (c *Client) IssueAnonymousToken(ctx context.Context) (token, userID string, err error) {
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/auth/anonymous", nil, &resp); err != nil {
		return "", "", err
	}
	return resp.Token, resp.UserID, nil
}

// BreakerState reports the circuit breaker's state
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// do sends one JSON request through the breaker and decodes the response into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, path, output.ErrRemoteUnavailable)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request failed: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response failed: %w", method, path, err)
	}
	return nil
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func decodeError(resp *http.Response) error {
	re := &output.RemoteError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		re.Message = eb.Error
		re.Fields = eb.Fields
	} else {
		re.Message = strings.TrimSpace(string(data))
	}
	return re
}
