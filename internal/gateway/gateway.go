// Package gateway is the uniform action/payload transport to the Apps Script
// backend. It does not interpret payload schemas.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-quizdesk/internal/metrics"
)

var (
	ErrTransport = errors.New("gateway: transport failure")
	ErrMalformed = errors.New("gateway: malformed response")
)

// RemoteError is a backend-reported logical failure (status != "success").
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Action + ": " + e.Message
}

const genericRemoteMessage = "API error"

// Envelope is the backend's response wrapper.
type Envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ReadActions are idempotent reads that CallWithRetry may repeat.
var ReadActions = []string{"getTopics", "getQuestions", "getAssignmentsByClass", "getAssignedExamsForStudent"}

// CacheableActions may be served from the optional response cache.
var CacheableActions = []string{"getTopics", "getTheory"}

type Client struct {
	base      *url.URL
	http      *http.Client
	retryMax  int
	backoff   time.Duration
	reads     map[string]bool
	cacheable map[string]bool
	cache     Cache
	log       logrus.FieldLogger
	sleep     func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithRetry(max int, backoff time.Duration) Option {
	return func(c *Client) { c.retryMax, c.backoff = max, backoff }
}

func WithCache(cache Cache) Option { return func(c *Client) { c.cache = cache } }

func WithLogger(l logrus.FieldLogger) Option { return func(c *Client) { c.log = l } }

func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("gateway: remote URL not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: bad remote URL: %w", err)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{},
		retryMax:  2,
		backoff:   time.Second,
		reads:     toSet(ReadActions),
		cacheable: toSet(CacheableActions),
		log:       logrus.StandardLogger(),
		sleep:     sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Call issues GET ?action=<name>&payload=<json> and decodes the envelope's data
// into out (which may be nil).
func (c *Client) Call(ctx context.Context, action string, payload, out any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	pj, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: encode %s payload: %w", action, err)
	}

	cacheKey := ""
	if c.cache != nil && c.cacheable[action] {
		cacheKey = "quizdesk:" + action + ":" + string(pj)
		if raw, ok := c.cache.Get(ctx, cacheKey); ok {
			metrics.GatewayCalls.WithLabelValues(action, "cache_hit").Inc()
			return decodeData(action, raw, out)
		}
	}

	u := *c.base
	q := u.Query()
	q.Set("action", action)
	q.Set("payload", string(pj))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	data, err := c.do(action, req)
	if err != nil {
		return err
	}
	if cacheKey != "" {
		c.cache.Set(ctx, cacheKey, data)
	}
	return decodeData(action, data, out)
}

// CallWithRetry repeats Call on transport failures with linear backoff, but only
// for ReadActions. Any other action runs exactly once. Logical errors are never
// retried.
func (c *Client) CallWithRetry(ctx context.Context, action string, payload, out any) error {
	if !c.reads[action] {
		return c.Call(ctx, action, payload, out)
	}
	var err error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		err = c.Call(ctx, action, payload, out)
		if err == nil || !errors.Is(err, ErrTransport) {
			return err
		}
		if attempt < c.retryMax {
			metrics.GatewayRetries.WithLabelValues(action).Inc()
			c.log.WithFields(logrus.Fields{"action": action, "attempt": attempt + 2}).Warn("retrying read action")
			if serr := c.sleep(ctx, c.backoff*time.Duration(attempt+1)); serr != nil {
				return fmt.Errorf("%w: %v", ErrTransport, serr)
			}
		}
	}
	return err
}

// Post sends {"action": <name>, ...body} as a raw JSON body for payloads too
// large for a query string. body must encode to a JSON object (or be nil).
func (c *Client) Post(ctx context.Context, action string, body, out any) error {
	fields := map[string]json.RawMessage{}
	if body != nil {
		bj, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode %s body: %w", action, err)
		}
		if err := json.Unmarshal(bj, &fields); err != nil {
			return fmt.Errorf("gateway: %s body must be a JSON object: %w", action, err)
		}
	}
	an, _ := json.Marshal(action)
	fields["action"] = an
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("gateway: encode %s body: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String(), bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// text/plain keeps browsers from preflighting; the backend expects it
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	data, err := c.do(action, req)
	if err != nil {
		return err
	}
	return decodeData(action, data, out)
}

func (c *Client) do(action string, req *http.Request) (json.RawMessage, error) {
	start := time.Now()
	res, err := c.http.Do(req)
	metrics.GatewayDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(action, "transport").Inc()
		c.log.WithError(err).WithField("action", action).Error("backend request failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, action, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, res.Body)
		metrics.GatewayCalls.WithLabelValues(action, "transport").Inc()
		return nil, fmt.Errorf("%w: %s: HTTP %s", ErrTransport, action, res.Status)
	}

	var env Envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		metrics.GatewayCalls.WithLabelValues(action, "malformed").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, action, err)
	}
	if env.Status != "success" {
		metrics.GatewayCalls.WithLabelValues(action, "remote_error").Inc()
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = genericRemoteMessage
		}
		return nil, &RemoteError{Action: action, Message: msg}
	}
	metrics.GatewayCalls.WithLabelValues(action, "ok").Inc()
	return env.Data, nil
}

func decodeData(action string, data json.RawMessage, out any) error {
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrMalformed, action, err)
	}
	return nil
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

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
