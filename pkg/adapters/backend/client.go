package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/observability"
	"github.com/google/uuid"
)

// ErrBootstrap is returned when the startup fetches cannot complete.
var ErrBootstrap = errors.New("backend bootstrap failed")

// Info is everything the editor needs before it can open the push channels.
type Info struct {
	Library domain.Library `json:"library"`
	Domain  string         `json:"domain"`
	Port    string         `json:"port"`
	Version string         `json:"version"`
}

// SocketURL returns the websocket address of a push channel on the backend.
func (i Info) SocketURL(path string) string {
	host := i.Domain
	if i.Port != "" {
		host = net.JoinHostPort(i.Domain, i.Port)
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/" + strings.TrimPrefix(path, "/")}
	return u.String()
}

// Client talks to the backend request/response surface.
//
// Bootstrap is synchronous and runs once before the event loop starts.
// Send is fire-and-forget: the request runs on its own goroutine and its
// outcome is only logged and counted.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records sent and failed mutations.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the backend at baseURL (e.g. http://localhost:7070).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q: missing scheme or host", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Bootstrap fetches the block catalog, the push channel address and the
// backend version. Any failure aborts startup.
func (c *Client) Bootstrap(ctx context.Context) (*Info, error) {
	info := &Info{}

	if err := c.getJSON(ctx, "/library", &info.Library); err != nil {
		return nil, fmt.Errorf("%w: library: %v", ErrBootstrap, err)
	}
	for name, td := range info.Library {
		if td == nil {
			delete(info.Library, name)
			continue
		}
		td.Type = name
	}

	var domainResp struct{ Domain string }
	if err := c.getJSON(ctx, "/domain", &domainResp); err != nil {
		return nil, fmt.Errorf("%w: domain: %v", ErrBootstrap, err)
	}
	info.Domain = domainResp.Domain
	if info.Domain == "" {
		info.Domain = c.base.Hostname()
	}

	var portResp struct{ Port any }
	if err := c.getJSON(ctx, "/port", &portResp); err != nil {
		return nil, fmt.Errorf("%w: port: %v", ErrBootstrap, err)
	}
	if portResp.Port != nil {
		info.Port = fmt.Sprint(portResp.Port)
	} else {
		info.Port = c.base.Port()
	}

	var versionResp struct{ Version string }
	if err := c.getJSON(ctx, "/version", &versionResp); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrBootstrap, err)
	}
	info.Version = versionResp.Version

	c.logger.Info("backend ready", "version", info.Version, "types", len(info.Library), "domain", info.Domain, "port", info.Port)
	return info, nil
}

// Send issues a mutation without waiting for the reply.
func (c *Client) Send(ctx context.Context, m domain.Mutation) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Do(ctx, m); err != nil {
			c.logger.Warn("mutation failed", "kind", m.Kind, "id", m.ID, "err", err)
		}
	}()
}

// Wait blocks until every in-flight Send has completed.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Do issues a mutation and waits for the backend to answer.
func (c *Client) Do(ctx context.Context, m domain.Mutation) error {
	method, path, err := m.Endpoint()
	if err != nil {
		c.metrics.Failed(string(m.Kind))
		return err
	}

	var body io.Reader
	if m.Body != nil {
		data, err := json.Marshal(m.Body)
		if err != nil {
			c.metrics.Failed(string(m.Kind))
			return fmt.Errorf("failed to encode %s: %w", m.Kind, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		c.metrics.Failed(string(m.Kind))
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	c.metrics.Sent(string(m.Kind))
	resp, err := c.http.Do(req)
	c.metrics.ObserveMutation(string(m.Kind), time.Since(start).Seconds())
	if err != nil {
		c.metrics.Failed(string(m.Kind))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		c.metrics.Failed(string(m.Kind))
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}

	c.logger.Debug("mutation sent", "kind", m.Kind, "id", m.ID, "request_id", requestID, "status", resp.StatusCode)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) resolve(path string) string {
	return c.base.JoinPath(path).String()
}
