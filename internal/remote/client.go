// Package remote drives a running gravsim server over HTTP. Calls go through
// a circuit breaker so a dead server fails fast instead of stalling every
// request for the full timeout.
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

	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("remote: server unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: status %d", e.Code)
	}
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Body)
}

type Options struct {
	Timeout time.Duration
	// MaxFailures consecutive transport or 5xx failures open the breaker.
	MaxFailures int
	// Cooldown is how long the breaker stays open before a trial request.
	Cooldown time.Duration
	Logger   *logging.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *logging.Logger
}

func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	log := opts.Logger
	maxFailures := uint32(opts.MaxFailures)
	settings := gobreaker.Settings{
		Name:    "gravsim-remote",
		Timeout: opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Rejected requests mean the server is alive.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// Setup replaces the server's snapshot and returns what it installed.
func (c *Client) Setup(ctx context.Context, s gravity.State) (gravity.State, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return gravity.State{}, logging.WrapError(err, "remote: encode state")
	}
	return c.do(ctx, http.MethodPost, "/gravity", body)
}

// Step advances the server's simulation by one step.
func (c *Client) Step(ctx context.Context) (gravity.State, error) {
	return c.do(ctx, http.MethodPost, "/gravity/step_naive", nil)
}

// Get reads the current snapshot without advancing it.
func (c *Client) Get(ctx context.Context) (gravity.State, error) {
	return c.do(ctx, http.MethodGet, "/gravity", nil)
}

func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (gravity.State, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return gravity.State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.log.Error(ctx, "remote call failed", err, "method", method, "path", path)
		return gravity.State{}, err
	}
	return out.(gravity.State), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (gravity.State, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return gravity.State{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.GetCorrelationID(ctx); id != "" {
		req.Header.Set(requestIDHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gravity.State{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return gravity.State{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var s gravity.State
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return gravity.State{}, logging.WrapError(err, "remote: decode %s %s", method, path)
	}
	return s, nil
}
