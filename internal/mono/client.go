// Package mono is the read-only Monobank personal API client.
//
// Every call goes through the persistent rate limiter (one call per 60s per
// token/endpoint/account) and the disk cache, so concurrent users of the same
// token serialize on the same keys and repeated queries stay off the network.
package mono

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"monobudget/internal/cache"
	"monobudget/internal/ratelimit"
	"monobudget/pkg/clock"
)

const (
	// DefaultBaseURL is the production Monobank API host.
	DefaultBaseURL = "https://api.monobank.ua"

	// PageCap is the maximum number of statement items per response.
	PageCap = 500

	clientInfoTTL      = 600
	statementTTL       = 600
	clientInfoInterval = 60 * time.Second
	statementInterval  = 60 * time.Second
	maxAttempts        = 5
	requestTimeout     = 20 * time.Second
	maxBackoff         = 30.0
	max429Backoff      = 90.0
)

// ErrAuth marks 401/403 responses: the stored token is invalid or revoked.
// Never retried.
var ErrAuth = errors.New("mono: token rejected by upstream")

// APIError is a non-retryable upstream HTTP failure.
type APIError struct {
	Status int
	Reason string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mono: API error %d %s: %s", e.Status, e.Reason, e.Body)
}

// Client talks to the Monobank API on behalf of one user token.
type Client struct {
	token   string
	fp      string
	baseURL string

	http    *http.Client
	cache   *cache.Cache
	limiter *ratelimit.Limiter
	clock   clock.Clock
	sleep   func(time.Duration)
	log     zerolog.Logger

	requests atomic.Int64
}

// Options configures optional Client collaborators.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Clock      clock.Clock
	Sleep      func(time.Duration)
	Logger     zerolog.Logger
}

// NewClient builds a Client for token. Cache and limiter are required: they
// are the only protection against the upstream's hard rate limits.
func NewClient(token string, c *cache.Cache, l *ratelimit.Limiter, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewReal()
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	sum := sha256.Sum256([]byte(token))
	return &Client{
		token:   token,
		fp:      hex.EncodeToString(sum[:])[:12],
		baseURL: opts.BaseURL,
		http:    opts.HTTPClient,
		cache:   c,
		limiter: l,
		clock:   opts.Clock,
		sleep:   opts.Sleep,
		log:     opts.Logger.With().Str("component", "mono").Logger(),
	}
}

// Fingerprint is the short stable hash of the token used in cache and
// limiter keys so keys never leak the secret.
func (c *Client) Fingerprint() string {
	return c.fp
}

// Requests returns the number of HTTP requests issued so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

func backoffSeconds(attempt int) float64 {
	base := 1.2 * float64(int64(1)<<uint(attempt))
	if base > 20.0 {
		base = 20.0
	}
	return base + rand.Float64()*0.8
}

func retryAfterSeconds(h http.Header) (float64, bool) {
	ra := h.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	n, err := strconv.Atoi(ra)
	if err != nil || n < 0 {
		return 0, false
	}
	return float64(n), true
}

// getJSON performs an authenticated GET with retry on transient failures.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Token", c.token)
		req.Header.Set("User-Agent", "monobudget/0.1")

		c.requests.Add(1)
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.sleepSeconds(minf(maxBackoff, backoffSeconds(attempt)))
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.sleepSeconds(minf(maxBackoff, backoffSeconds(attempt)))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait, ok := retryAfterSeconds(resp.Header)
			if !ok {
				wait = minf(max429Backoff, backoffSeconds(attempt))
			}
			c.log.Warn().Str("path", path).Float64("wait_s", wait).Msg("rate limited by upstream")
			lastErr = &APIError{Status: resp.StatusCode, Reason: resp.Status, Body: string(body)}
			c.sleepSeconds(wait)
			continue

		case resp.StatusCode >= 500:
			lastErr = &APIError{Status: resp.StatusCode, Reason: resp.Status, Body: string(body)}
			c.sleepSeconds(minf(maxBackoff, backoffSeconds(attempt)))
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)

		case resp.StatusCode != http.StatusOK:
			return &APIError{Status: resp.StatusCode, Reason: resp.Status, Body: string(body)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("mono: decoding %s: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("mono: request failed after %d attempts: %s: %w", maxAttempts, path, lastErr)
}

func (c *Client) sleepSeconds(s float64) {
	c.sleep(time.Duration(s * float64(time.Second)))
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ClientInfo returns the account list, served from cache within its TTL.
func (c *Client) ClientInfo(ctx context.Context) (*ClientInfo, error) {
	key := "mono:client-info:" + c.fp

	var info ClientInfo
	if c.cache.Get(key, &info) {
		return &info, nil
	}

	if err := c.limiter.Throttle(key, clientInfoInterval, true); err != nil {
		return nil, err
	}
	if err := c.getJSON(ctx, "/personal/client-info", &info); err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, &info, clientInfoTTL); err != nil {
		c.log.Warn().Err(err).Msg("caching client-info failed")
	}
	return &info, nil
}

// Statement returns every statement item for account within [from, to],
// walking upstream pages until the window is exhausted. The merged result is
// cached under the full (account, from, to) key, so a retry of the same
// window is free.
func (c *Client) Statement(ctx context.Context, account string, from, to int64) ([]StatementItem, error) {
	key := fmt.Sprintf("mono:statement:%s:%s:%d:%d", c.fp, account, from, to)

	var items []StatementItem
	if c.cache.Get(key, &items) {
		return items, nil
	}

	items, err := c.statementPaginated(ctx, account, from, to)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, items, statementTTL); err != nil {
		c.log.Warn().Err(err).Msg("caching statement failed")
	}
	return items, nil
}

// statementPaginated walks the window newest-first. The upstream caps each
// response at PageCap items with the most recent first, so after a full page
// the walk continues from just before the oldest returned timestamp. cur_to
// strictly decreases every round, which guarantees termination even when many
// items share one timestamp.
func (c *Client) statementPaginated(ctx context.Context, account string, from, to int64) ([]StatementItem, error) {
	limiterKey := fmt.Sprintf("mono:statement:%s:%s", c.fp, account)

	out := make([]StatementItem, 0, PageCap)
	seen := make(map[string]struct{})
	curTo := to

	for curTo > from {
		if err := c.limiter.Throttle(limiterKey, statementInterval, true); err != nil {
			return nil, err
		}

		path := fmt.Sprintf("/personal/statement/%s/%d/%d", account, from, curTo)
		var batch []StatementItem
		if err := c.getJSON(ctx, path, &batch); err != nil {
			return nil, err
		}

		oldest := int64(0)
		for _, it := range batch {
			if it.ID == "" {
				continue
			}
			if oldest == 0 || it.Time < oldest {
				oldest = it.Time
			}
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}

		if len(batch) < PageCap {
			break
		}
		if oldest == 0 {
			break
		}

		newTo := oldest - 1
		if newTo >= curTo {
			newTo = curTo - 1
		}
		curTo = newTo
	}

	return out, nil
}
