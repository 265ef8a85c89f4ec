package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// DefaultClientTimeout bounds a request to the execution endpoint.
const DefaultClientTimeout = 60 * time.Second

// ClientConfig configures the execution endpoint client.
type ClientConfig struct {
	// Endpoint is the absolute URL of the execution endpoint.
	Endpoint string
	// Timeout bounds a single request. Zero uses DefaultClientTimeout.
	Timeout time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client posts commands to an execution endpoint. It never retries.
type Client struct {
	endpoint string
	resty    *resty.Client
}

// NewClient validates cfg and returns a client.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("executor endpoint is required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("executor endpoint must be an http or https url: %q", endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{endpoint: endpoint, resty: client}, nil
}

// SelfEndpoint returns the execution endpoint URL of a server listening on
// addr and mounted under basePath. Wildcard and empty hosts map to the
// loopback address.
func SelfEndpoint(addr, basePath string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		host, port = strings.TrimSpace(addr), ""
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	hostPort := host
	if port != "" {
		hostPort = net.JoinHostPort(host, port)
	}
	prefix := strings.Trim(strings.TrimSpace(basePath), "/")
	if prefix != "" {
		prefix = "/" + prefix
	}
	return "http://" + hostPort + prefix + "/api/execute"
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute implements core.Executor.
func (c *Client) Execute(ctx context.Context, req core.ExecRequest) (core.ExecResult, error) {
	log := pslog.Ctx(ctx).With("endpoint", c.endpoint)
	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(schema.ExecuteRequest{Command: req.Command}).
		Post(c.endpoint)
	if err != nil {
		log.Warn("executor request failed", "err", err)
		return core.ExecResult{}, &schema.TransportError{Err: err}
	}
	log = log.With("status", resp.StatusCode(), "duration", resp.Time())
	body := resp.Body()
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		var payload schema.ExecuteResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Warn("executor response decode failed", "err", err)
			return core.ExecResult{}, &schema.TransportError{Err: fmt.Errorf("decode response: %w", err)}
		}
		log.Debug("executor request completed", "result_len", len(payload.Result))
		return core.ExecResult{Output: payload.Result}, nil
	}
	var failure schema.ExecuteErrorResponse
	if err := json.Unmarshal(body, &failure); err != nil {
		log.Warn("executor error response decode failed", "err", err)
		return core.ExecResult{}, &schema.TransportError{Err: fmt.Errorf("unexpected status %d: %w", resp.StatusCode(), err)}
	}
	log.Debug("executor command reported failure")
	return core.ExecResult{}, &schema.ExecutionError{Message: failure.Error}
}
