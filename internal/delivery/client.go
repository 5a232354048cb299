// Package delivery sends single messages to the external messaging API.
package delivery

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
)

const (
	DefaultBaseURL       = "https://wasenderapi.com/api"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = 2 * time.Second
	DefaultRateLimitStep = 30 * time.Second
	DefaultRateLimitCap  = 300 * time.Second

	statusTimeout = 10 * time.Second
)

// DefaultMaxRateLimitWaits bounds how many 429s one send tolerates.
const DefaultMaxRateLimitWaits = 10

// Doer is the subset of *http.Client used by the client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	RateLimitStep     time.Duration
	RateLimitCap      time.Duration
	MaxRateLimitWaits int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RateLimitStep <= 0 {
		c.RateLimitStep = DefaultRateLimitStep
	}
	if c.RateLimitCap <= 0 {
		c.RateLimitCap = DefaultRateLimitCap
	}
	if c.MaxRateLimitWaits <= 0 {
		c.MaxRateLimitWaits = DefaultMaxRateLimitWaits
	}
	return c
}

// Payload is the body of POST /send-message.
type Payload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Result is the outcome of one Send. Err is nil on success.
type Result struct {
	Success   bool
	MessageID string
	Attempts  int
	Err       error
}

// Error returns the failure text, or "" on success.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Sender is what the dispatch loop and test sender depend on.
type Sender interface {
	Send(ctx context.Context, to, text string) Result
}

type Client struct {
	cfg   Config
	http  Doer
	log   zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(d Doer) Option { return func(c *Client) { c.http = d } }

// WithSleep replaces the backoff sleeper.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithClock replaces time.Now for synthesized message IDs.
func WithClock(fn func() time.Time) Option { return func(c *Client) { c.now = fn } }

func NewClient(cfg Config, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:   cfg.withDefaults(),
		log:   log,
		sleep: sleepCtx,
		now:   time.Now,
	}
	c.http = &http.Client{Timeout: c.cfg.Timeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Sender = (*Client)(nil)

// Send delivers one text message.
func (c *Client) Send(ctx context.Context, to, text string) Result {
	return c.SendWithRetry(ctx, Payload{To: to, Text: text}, c.cfg.MaxAttempts)
}

// SendWithRetry posts payload up to maxAttempts times. 401 ends immediately;
// 429 waits min(n*step, cap) for the n-th rate limit and does not use up an
// attempt; any other failure waits RetryDelay before the next attempt.
func (c *Client) SendWithRetry(ctx context.Context, p Payload, maxAttempts int) Result {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Result{Err: appErrors.ErrMissingCredential}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	limited := 0
	calls := 0
	for attempt := 1; attempt <= maxAttempts; {
		calls++
		id, status, err := c.post(ctx, p)
		if err == nil {
			if id == "" {
				id = c.syntheticID()
			}
			return Result{Success: true, MessageID: id, Attempts: attempt}
		}
		lastErr = err

		switch {
		case status == http.StatusUnauthorized:
			return Result{Err: appErrors.ErrInvalidCredential, Attempts: attempt}
		case status == http.StatusTooManyRequests:
			limited++
			if limited > c.cfg.MaxRateLimitWaits {
				return Result{Err: fmt.Errorf("%w after %d waits", appErrors.ErrRateLimited, limited-1), Attempts: attempt}
			}
			wait := c.cfg.RateLimitStep * time.Duration(limited)
			if wait > c.cfg.RateLimitCap {
				wait = c.cfg.RateLimitCap
			}
			c.log.Warn().Str("to", p.To).Dur("wait", wait).Int("call", calls).Msg("rate limited, backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return Result{Err: err, Attempts: attempt}
			}
			continue
		}

		if attempt == maxAttempts {
			break
		}
		c.log.Debug().Err(err).Str("to", p.To).Int("attempt", attempt).Msg("send failed, retrying")
		if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
			return Result{Err: err, Attempts: attempt}
		}
		attempt++
	}

	return Result{
		Err:      fmt.Errorf("%w after %d attempts: %v", appErrors.ErrTransientDelivery, maxAttempts, lastErr),
		Attempts: maxAttempts,
	}
}

type sendResponse struct {
	ID      any    `json:"id"`
	Message string `json:"message"`
	Data    struct {
		ID    any `json:"id"`
		MsgID any `json:"msgId"`
	} `json:"data"`
}

func (r sendResponse) messageID() string {
	for _, v := range []any{r.ID, r.Data.ID, r.Data.MsgID} {
		if id := idString(v); id != "" {
			return id
		}
	}
	return ""
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return fmt.Sprint(t)
	}
}

// post performs one request. On failure it returns the HTTP status (0 for
// transport errors).
func (c *Client) post(ctx context.Context, p Payload) (string, int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", 0, err
	}
	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, c.cfg.BaseURL+"/send-message", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var parsed sendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(parsed.Message)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return "", resp.StatusCode, errors.New(msg)
	}
	return parsed.messageID(), resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) syntheticID() string {
	return fmt.Sprintf("msg_%s_%d", uuid.NewString()[:8], c.now().UnixMilli())
}

// CheckStatus calls GET /status and returns the decoded body.
func (c *Client) CheckStatus(ctx context.Context) (map[string]any, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, appErrors.ErrMissingCredential
	}
	rctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodGet, c.cfg.BaseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, appErrors.ErrInvalidCredential
	}
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, fmt.Errorf("status check failed: HTTP %d", resp.StatusCode)
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
