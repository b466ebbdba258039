// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds the request/response calls.
	DefaultTimeout = 30 * time.Second

	// DefaultIdleTimeout ends a reply stream that has gone quiet.
	DefaultIdleTimeout = 60 * time.Second

	// MaxResponseSize bounds the body of a request/response call.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 4 * 1024
)

var (
	// sharedHTTPClient serves the request/response calls.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient has no timeout; streams are bounded by context
	// and the idle watchdog.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat service. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	stream      *http.Client
	timeout     time.Duration
	idleTimeout time.Duration
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds ListChats and ChatHistory. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIdleTimeout sets the stream idle timeout. Zero disables it.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

// WithRateLimit limits requests to rps per second with the given burst.
// rps <= 0 removes the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithHTTPClient replaces both underlying HTTP clients, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.stream = hc
	}
}

// New creates a client for the service at baseURL. An empty or invalid URL
// yields a config.ConfigurationError.
func New(baseURL string, opts ...Option) (*Client, error) {
	if cfgErr := config.ValidateBaseURL(baseURL); cfgErr != nil {
		return nil, *cfgErr
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, config.ConfigurationError{Field: "service.base_url", Message: err.Error()}
	}

	c := &Client{
		baseURL:     u,
		http:        sharedHTTPClient,
		stream:      sharedStreamingClient,
		timeout:     DefaultTimeout,
		idleTimeout: DefaultIdleTimeout,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FromConfig creates a client from the service section of cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	s := cfg.Service
	return New(s.BaseURL,
		WithLogger(logger),
		WithTimeout(s.RequestTimeout.Std()),
		WithIdleTimeout(s.IdleTimeout.Std()),
		WithRateLimit(s.RequestsPerSecond, s.Burst),
	)
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.JoinPath(escaped...).String()
}

// =============================================================================
// REQUEST / RESPONSE CALLS
// =============================================================================

// ListChats returns the chats of userID, newest first as ordered by the service.
func (c *Client) ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	var chats []model.ChatSummary
	status, err := c.getJSON(ctx, "fetch chats", c.endpoint("chats", userID), &chats)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &TransportError{Op: "fetch chats", Status: status}
	}
	if chats == nil {
		chats = []model.ChatSummary{}
	}
	return chats, nil
}

// ChatHistory returns the chat chatID with its messages. A chat the service
// does not know yields (nil, nil): no history is not an error.
func (c *Client) ChatHistory(ctx context.Context, chatID string) (*model.ChatHistory, error) {
	var hist model.ChatHistory
	status, err := c.getJSON(ctx, "fetch chat", c.endpoint("chats", chatID), &hist)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	hist.Normalize()
	return &hist, nil
}

// getJSON performs a GET and decodes a 2xx body into out. A 404 is returned
// as a status with a nil error so callers can decide what it means.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.String("url", endpoint), zap.Error(err))
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request finished",
		zap.String("op", op),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, statusError(op, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return resp.StatusCode, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if len(body) > MaxResponseSize {
		return resp.StatusCode, &TransportError{Op: op, Status: resp.StatusCode, Detail: "response too large"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.StatusCode, nil
}

// statusError converts a non-success response into a TransportError.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{Op: op, Status: resp.StatusCode, Detail: parseErrorDetail(body)}
}

// =============================================================================
// STREAMING
// =============================================================================

// StreamRequest is the body of a reply stream request. An empty ChatID asks
// the service to create a new chat; it is sent as null.
type StreamRequest struct {
	UserID  string
	ChatID  string
	Message string
}

// MarshalJSON encodes the request in the service's wire shape.
func (r StreamRequest) MarshalJSON() ([]byte, error) {
	var chatID *string
	if r.ChatID != "" {
		chatID = &r.ChatID
	}
	return json.Marshal(struct {
		UserID  string  `json:"user_id"`
		ChatID  *string `json:"chat_id"`
		Message string  `json:"message"`
	}{r.UserID, chatID, r.Message})
}

// OpenStream sends a message and returns its reply stream. Any failure
// before the body starts (network, status, missing body) is returned as a
// *TransportError and no Stream is created.
//
// The stream lives until it ends, fails, idles out, ctx is cancelled, or
// Close is called.
func (c *Client) OpenStream(ctx context.Context, sr StreamRequest) (*Stream, error) {
	const op = "stream"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	watch := newIdleWatch(c.idleTimeout, cancel)

	endpoint := c.endpoint("chat", "stream")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Info("stream opening",
		zap.String("chat_id", sr.ChatID),
		zap.Int("message_len", len(sr.Message)))

	watch.arm()
	resp, err := c.stream.Do(req)
	watch.disarm()
	if err != nil {
		cancel()
		if watch.fired() {
			err = ErrIdleTimeout
		}
		c.logger.Warn("stream open failed", zap.Error(err))
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := statusError(op, resp)
		resp.Body.Close()
		cancel()
		c.logger.Warn("stream rejected", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: ErrNoBody}
	}

	return newStream(resp.Body, watch, cancel, c.logger), nil
}
