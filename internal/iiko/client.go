// Package iiko reads OLAP sales reports from an iiko RMS server.
package iiko

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"revenue/internal/cache"
	"revenue/internal/log"
)

const (
	authPath   = "/resto/api/auth"
	logoutPath = "/resto/api/logout"
	olapPath   = "/resto/api/reports/olap"
	olapV2Path = "/resto/api/v2/reports/olap"

	// DefaultTokenTTL stays well under the server's session lifetime.
	DefaultTokenTTL    = 10 * time.Minute
	DefaultBackoffBase = time.Second

	dateTimeLayout = "2006-01-02T15:04:05"
)

var (
	ErrAuth        = errors.New("iiko authentication failed")
	ErrUnavailable = errors.New("iiko server unavailable")
)

// StatusError is a non-2xx reply that was not retried or ran out of retries.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("iiko %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

type Config struct {
	BaseURL      string
	Login        string
	PasswordSHA1 string
	Timeout      time.Duration
	MaxRetries   int
	InsecureTLS  bool
	BackoffBase  time.Duration
	TokenTTL     time.Duration
}

// DishFilter decides which dishes the dish report keeps.
type DishFilter interface {
	Allowed(dish string) bool
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	tokens     *cache.LRUCache[string]
	dishes     DishFilter
	logger     *log.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

// WithHTTPClient replaces the transport, e.g. with an httptest server client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDishFilter drops dish rows the filter does not allow.
func WithDishFilter(f DishFilter) Option {
	return func(c *Client) { c.dishes = f }
}

// WithTokenCache shares a token cache, typically one built with a fake clock.
func WithTokenCache(tc *cache.LRUCache[string]) Option {
	return func(c *Client) { c.tokens = tc }
}

func New(cfg Config, logger *log.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if logger == nil {
		logger = log.Discard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		// Venue servers commonly run with self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		tokens:     cache.NewLRUCache[string](4, cfg.TokenTTL),
		logger:     logger.WithComponent(log.ComponentIiko),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Auth returns a session token, reusing a cached one while it is fresh.
func (c *Client) Auth(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(c.cfg.Login); ok {
		return token, nil
	}

	form := url.Values{}
	form.Set("login", c.cfg.Login)
	form.Set("pass", c.cfg.PasswordSHA1)
	body := form.Encode()

	resp, err := c.do(ctx, log.OpAuth, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %s", ErrAuth, se.Body)
		}
		return "", fmt.Errorf("iiko auth: %w", err)
	}

	token := strings.TrimSpace(string(resp))
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrAuth)
	}
	c.tokens.Set(c.cfg.Login, token)
	c.logger.DebugContext(ctx, "Obtained iiko token", log.FieldOperation, log.OpAuth)
	return token, nil
}

// Logout releases the cached session so it does not hold a license slot.
func (c *Client) Logout(ctx context.Context) error {
	token, ok := c.tokens.Get(c.cfg.Login)
	if !ok {
		return nil
	}
	c.tokens.Delete(c.cfg.Login)

	q := url.Values{}
	q.Set("key", token)
	_, err := c.do(ctx, "logout", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+logoutPath+"?"+q.Encode(), nil)
	})
	return err
}

// withToken runs fn with a session token. A 401 from a report endpoint drops
// the cached token and retries once with a fresh one.
func (c *Client) withToken(ctx context.Context, fn func(token string) ([]byte, error)) ([]byte, error) {
	token, err := c.Auth(ctx)
	if err != nil {
		return nil, err
	}
	body, err := fn(token)
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusUnauthorized {
		c.tokens.Delete(c.cfg.Login)
		if token, err = c.Auth(ctx); err != nil {
			return nil, err
		}
		return fn(token)
	}
	return body, err
}

// do sends the request built by newReq, retrying transport failures and
// retryable statuses with exponential backoff. It returns the response body.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BackoffBase << (attempt - 1)
			c.logger.WarnContext(ctx, "Retrying iiko request",
				log.FieldOperation, op,
				log.FieldAttempt, attempt,
				log.FieldError, lastErr.Error(),
				"delay", delay.String())
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", op, err)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.logger.DebugContext(ctx, "iiko response",
			log.FieldOperation, op,
			log.FieldStatusCode, resp.StatusCode,
			log.FieldDuration, time.Since(start).Milliseconds())

		if readErr != nil {
			lastErr = fmt.Errorf("%w: read body: %v", ErrUnavailable, readErr)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		statusErr := &StatusError{Op: op, Status: resp.StatusCode, Body: truncate(string(body), 200)}
		if !retryable(resp.StatusCode) {
			return nil, statusErr
		}
		lastErr = statusErr
	}
	return nil, lastErr
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func jsonRequest(ctx context.Context, endpoint string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
