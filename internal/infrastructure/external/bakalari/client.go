// Package bakalari implements the Bakaláři school portal client.
// The portal has no public API for marks, so the client logs in with a
// cookie session and scrapes the chronological grades page.
package bakalari

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/pkg/circuitbreaker"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
	"github.com/bakalari-hub/grade-notifier/pkg/retry"
)

const (
	loginPath  = "/login"
	gradesPath = "/next/prubzna.aspx?s=chrono"

	userAgent = "grade-notifier/1.0 (+https://github.com/bakalari-hub/grade-notifier)"

	// maxPageSize bounds the body read from the portal.
	maxPageSize = 4 << 20
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the portal client.
type ClientConfig struct {
	// BaseURL is the school's Bakaláři root, e.g. https://bakalari.example.cz
	BaseURL string

	Username string
	Password string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// RateLimiterConfig for polite portal access
	RateLimiterConfig RateLimiterConfig

	// Retrier overrides retry.PortalRetrier.
	Retrier *retry.Retrier

	// Breaker overrides circuitbreaker.PortalBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the default client. Its Jar is replaced when nil.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, username, password string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		Username:          username,
		Password:          password,
		Timeout:           30 * time.Second,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client fetches raw grade rows from the portal.
type Client struct {
	config      ClientConfig
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	rateLimiter *RateLimiter
	retrier     *retry.Retrier
	breaker     *circuitbreaker.CircuitBreaker

	// mu guards the portal session.
	mu       sync.Mutex
	loggedIn bool
}

// NewClient creates a new portal client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("bakalari: base url is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("bakalari: invalid base url: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	log := logger.OrDefault(config.Logger).With(logger.Component("bakalari"))

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("bakalari: cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}

	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.PortalBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}, circuitbreaker.WithIsFailure(isPortalFailure))
	}

	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.PortalRetrier()
	}
	retrier = retrier.With(
		retry.WithRetryIf(isRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("portal request failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	return &Client{
		config:      config,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		httpClient:  httpClient,
		logger:      log,
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		retrier:     retrier,
		breaker:     breaker,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FETCH OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// FetchRawGradeRows logs in when needed and returns the rows of the
// chronological grades page. Transport failures are wrapped as
// shared.ErrFetch; a page the extractor does not understand is
// shared.ErrInvalidFormat.
func (c *Client) FetchRawGradeRows(ctx context.Context) ([]grade.RawRow, error) {
	const op = "FetchRawGradeRows"
	started := time.Now()

	var rows []grade.RawRow
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rows, err = retry.DoWithData(ctx, c.retrier, c.fetchOnce)
		return err
	})
	if err != nil {
		if shared.IsValidation(err) {
			return nil, err
		}
		return nil, shared.FetchError(op, err)
	}

	c.logger.Debug("grades page fetched",
		logger.Count("rows", len(rows)),
		logger.Latency(time.Since(started)),
	)
	return rows, nil
}

// fetchOnce is one attempt: page, and on an expired session login plus page.
func (c *Client) fetchOnce(ctx context.Context) ([]grade.RawRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := c.fetchGrades(ctx)
	if !errors.Is(err, ErrSessionExpired) {
		return rows, err
	}

	c.logger.Info("portal session expired, logging in again")
	c.loggedIn = false
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	rows, err = c.fetchGrades(ctx)
	if errors.Is(err, ErrSessionExpired) {
		c.loggedIn = false
		return nil, ErrLoginRejected
	}
	return rows, err
}

// login must be called with mu held.
func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.config.Username},
		"password": {c.config.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create login request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	// A rejected login answers 200 with the login form again.
	if _, err := ExtractRows(body); errors.Is(err, ErrSessionExpired) {
		return ErrLoginRejected
	}

	c.loggedIn = true
	c.logger.Debug("logged in to portal")
	return nil
}

// fetchGrades must be called with mu held.
func (c *Client) fetchGrades(ctx context.Context) ([]grade.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+gradesPath, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create grades request: %w", err))
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("grades page: %w", err)
	}

	return ExtractRows(body)
}

// do sends one rate-limited request and returns the body of a 2xx answer.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "cs-CZ,cs;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Minute
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		c.rateLimiter.RecordRateLimitHit(retryAfter)
		return nil, retry.Retryable(&StatusError{Code: resp.StatusCode, RetryAfter: retryAfter})
	case resp.StatusCode >= 500:
		return nil, retry.Retryable(&StatusError{Code: resp.StatusCode})
	case resp.StatusCode >= 400:
		return nil, &StatusError{Code: resp.StatusCode}
	}

	return body, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrLoginRejected means the portal did not accept the credentials.
var ErrLoginRejected = errors.New("bakalari login rejected")

// StatusError is a non-2xx portal response.
type StatusError struct {
	Code       int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("portal responded with status %d", e.Code)
}

// isPortalFailure counts outages only. A page the extractor rejects and a
// cancelled poll say nothing about the portal's health.
func isPortalFailure(err error) bool {
	return !shared.IsValidation(err) && !errors.Is(err, context.Canceled)
}

// isRetryable: answers marked by do (server errors, throttling) and network
// failures are retried; rejected credentials, client errors and page format
// errors are not.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrLoginRejected) || shared.IsValidation(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if retry.IsRetryable(err) {
		return true
	}

	var statusErr *StatusError
	return !errors.As(err, &statusErr)
}
