// Package kegg talks to the KEGG REST API.
package kegg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/keggflow/internal/util"
	"github.com/OFFIS-RIT/keggflow/pkg/logger"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL       = "https://rest.kegg.jp"
	DefaultDelay         = 500 * time.Millisecond
	DefaultMaxRetries    = 3
	DefaultTimeout       = 30 * time.Second
	DefaultBackoffBase   = 1500 * time.Millisecond
	DefaultBackoffFactor = 1.5
)

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Client issues one request at a time. Every attempt, retries included, waits
// on a limiter that allows one request per Delay.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	backoff util.BackoffParams
}

type NewClientParams struct {
	BaseURL    string
	Delay      time.Duration
	MaxRetries int
	Timeout    time.Duration
	// BackoffBase is the wait before the first retry; later retries grow by
	// DefaultBackoffFactor. Zero uses DefaultBackoffBase.
	BackoffBase time.Duration
	HTTPClient  *http.Client
}

func NewClient(params NewClientParams) *Client {
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limit := rate.Inf
	if params.Delay > 0 {
		limit = rate.Every(params.Delay)
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := params.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		timeout: timeout,
		backoff: util.BackoffParams{
			MaxTries:  maxRetries,
			Base:      base,
			Factor:    DefaultBackoffFactor,
			Retryable: Retryable,
		},
	}
}

// Endpoint returns the request path for a get (relation == "") or link call,
// without the base URL.
func Endpoint(relation, payload string) string {
	if relation == "" {
		return "/get/" + payload
	}
	return "/link/" + relation + "/" + payload
}

// Get fetches the flat records of the given namespaced ids.
func (c *Client) Get(ctx context.Context, ids []string) ([]byte, error) {
	return c.do(ctx, Endpoint("", strings.Join(ids, "+")))
}

// Link fetches the cross references from the given namespaced ids to the
// target database.
func (c *Client) Link(ctx context.Context, target string, ids []string) ([]byte, error) {
	return c.do(ctx, Endpoint(target, strings.Join(ids, "+")))
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	attempt := 0
	return util.RetryWithBackoff(ctx, c.backoff, func(ctx context.Context) ([]byte, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if attempt > 1 {
			logger.Warn("[KEGG] Retrying request", "url", url, "attempt", attempt)
		} else {
			logger.Debug("[KEGG] Request", "url", url)
		}
		return c.once(ctx, url)
	})
}

func (c *Client) once(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}

// Retryable reports whether a request error is worth another attempt:
// HTTP 429 and 503, timeouts and transport errors.
func Retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode == http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
