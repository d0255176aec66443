// Package remote talks to the card collection HTTP API.
package remote

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

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

const (
	// DefaultBaseURL is the API root used when none is configured.
	DefaultBaseURL = "http://localhost:5000/api"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// DefaultRate is the steady request rate, in requests per second.
	DefaultRate = 10

	defaultBurst = 5
	userAgent    = "cardshuffler"

	// Error bodies are truncated to this many bytes in messages.
	maxErrorBody = 256
)

// Config holds client configuration.
type Config struct {
	// BaseURL of the API, e.g. http://localhost:5000/api
	BaseURL string

	// Timeout per request (defaults to 10s)
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests (defaults to 10)
	RequestsPerSecond float64

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client

	Logger *log.Logger
}

// Client is an HTTP client for the card collection API.
type Client struct {
	base        *url.URL
	http        *http.Client
	timeout     time.Duration
	rateLimiter *rate.Limiter
	logger      *log.Logger
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRate
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", cfg.BaseURL)
	}

	return &Client{
		base:        base,
		http:        cfg.HTTPClient,
		timeout:     cfg.Timeout,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultBurst),
		logger:      cfg.Logger,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// List fetches every card in the collection.
func (c *Client) List(ctx context.Context) ([]ctypes.Card, error) {
	var cards []ctypes.Card
	if err := c.do(ctx, "remote.list", http.MethodGet, "/cards", nil, false, &cards); err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []ctypes.Card{}
	}
	return cards, nil
}

// Create adds a card.
func (c *Client) Create(ctx context.Context, in ctypes.CardInput) error {
	return c.do(ctx, "remote.create", http.MethodPost, "/cards", in, false, nil)
}

// Update applies patch to the card with id.
func (c *Client) Update(ctx context.Context, id string, patch ctypes.CardPatch) error {
	return c.do(ctx, "remote.update", http.MethodPut, cardPath(id), patch, true, nil)
}

// Delete removes the card with id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "remote.delete", http.MethodDelete, cardPath(id), nil, true, nil)
}

// Clear removes every card.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, "remote.clear", http.MethodDelete, "/cards", nil, false, nil)
}

func cardPath(id string) string {
	return "/cards/" + url.PathEscape(id)
}

// do performs one request. byID marks routes where 404 means the card
// does not exist. When out is non-nil the response body is decoded into it.
func (c *Client) do(ctx context.Context, op, method, path string, body any, byID bool, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return ctypes.NewError(ctypes.KindNetwork, op, "rate limit wait cancelled", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return ctypes.NewError(ctypes.KindValidation, op, "cannot encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return ctypes.NewError(ctypes.KindNetwork, op, "cannot build request", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "id", requestID, "err", err)
		return ctypes.NewError(ctypes.KindNetwork, op, "request failed", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp, byID)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return ctypes.NewError(ctypes.KindNetwork, op, "empty response body", err)
		}
		return ctypes.NewError(ctypes.KindNetwork, op, "malformed response body", err)
	}
	return nil
}

func statusError(op string, resp *http.Response, byID bool) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	kind := ctypes.KindNetwork
	if byID && resp.StatusCode == http.StatusNotFound {
		kind = ctypes.KindNotFound
	}

	msg := fmt.Sprintf("status %d", resp.StatusCode)
	if text := strings.TrimSpace(string(snippet)); text != "" {
		msg += ": " + text
	}

	e := ctypes.NewError(kind, op, msg, nil)
	e.Status = resp.StatusCode
	return e
}
