// Package inference requests tactical decisions from the remote reasoning
// service. One call makes at most one HTTP request; retry and backoff belong
// to the caller.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/logger"
	"github.com/mrblmoore/hannibal-ai/internal/metrics"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// Credential supplies the bearer token sent with each request.
type Credential interface {
	Token(ctx context.Context) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithCredential sets the bearer token source.
func WithCredential(c Credential) Option {
	return func(cl *Client) {
		cl.cred = c
	}
}

// WithHTTPClient replaces the HTTP client. Its own Timeout, if any, applies
// in addition to the per-request timeout.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) {
		cl.http = h
	}
}

// WithTimeout sets the timeout used when RequestDecision is given none.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		cl.maxBody = n
	}
}

// Client posts battle snapshots to the reasoning endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	cred     Credential
	timeout  time.Duration
	maxBody  int64
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		timeout:  defaultTimeout,
		maxBody:  defaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string { return c.endpoint }

type request struct {
	BattleSnapshot   battle.BattleSnapshot   `json:"battleSnapshot"`
	CommanderContext battle.CommanderContext `json:"commanderContext"`
}

// RequestDecision sends snap and cmdCtx and waits at most timeout for a
// decision. Every failure is an *Error.
func (c *Client) RequestDecision(ctx context.Context, snap battle.BattleSnapshot, cmdCtx battle.CommanderContext, timeout time.Duration) (battle.Decision, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metrics.InferenceRequests.Inc()
	start := time.Now()
	dec, err := c.do(ctx, snap, cmdCtx)
	metrics.InferenceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InferenceFailures.WithLabelValues(KindOf(err).String()).Inc()
		return battle.Decision{}, err
	}
	return dec, nil
}

func (c *Client) do(ctx context.Context, snap battle.BattleSnapshot, cmdCtx battle.CommanderContext) (battle.Decision, error) {
	body, err := json.Marshal(request{BattleSnapshot: snap, CommanderContext: cmdCtx})
	if err != nil {
		return battle.Decision{}, fail(KindMalformed, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return battle.Decision{}, fail(KindUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.cred != nil {
		tok, err := c.cred.Token(ctx)
		if err != nil {
			if k := contextKind(ctx, err); k != KindNone {
				return battle.Decision{}, fail(k, err)
			}
			return battle.Decision{}, fail(KindUnreachable, fmt.Errorf("credential: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	l := log.With().Str("endpoint", c.endpoint).Str("commander", cmdCtx.ID).Logger()
	logger.LogRequest(l, body)

	resp, err := c.http.Do(req)
	if err != nil {
		return battle.Decision{}, fail(transportKind(ctx, err), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return battle.Decision{}, fail(transportKind(ctx, err), fmt.Errorf("read body: %w", err))
	}
	logger.LogResponse(l, data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return battle.Decision{}, &Error{Kind: KindBadStatus, Status: resp.StatusCode, Err: statusDetail(data)}
	}
	if int64(len(data)) > c.maxBody {
		return battle.Decision{}, fail(KindMalformed, fmt.Errorf("response exceeds %d bytes", c.maxBody))
	}
	return Decode(data)
}

// contextKind reports a timeout or cancellation caused by ctx.
func contextKind(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return KindCanceled
	}
	return KindNone
}

func transportKind(ctx context.Context, err error) Kind {
	if k := contextKind(ctx, err); k != KindNone {
		return k
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}

func statusDetail(data []byte) error {
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return nil
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return errors.New(msg)
}
