// Package agent calls the shutdown agent running on registered machines.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrAgentFailed reports that the agent was unreachable or refused the
// command. Handlers map it to a bad gateway response.
var ErrAgentFailed = errors.New("shutdown agent request failed")

// Client sends shutdown commands to the per-machine agent over HTTP.
type Client struct {
	httpClient   *http.Client
	port         int
	sharedSecret string
}

// Config holds agent client settings from the agent config section.
type Config struct {
	// Port the agent listens on, on every managed machine.
	Port int

	// SharedSecret, when set, is sent as a bearer token so agents can
	// reject commands from anything but this server.
	SharedSecret string

	// Timeout for the whole request, in seconds.
	Timeout int
}

// NewClient creates a shutdown agent client.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
	}
}

// Shutdown asks the agent at the given IP to power the machine down.
//
// Connection failures and non-2xx responses both wrap ErrAgentFailed;
// the machine being off already looks the same as the agent refusing.
func (c *Client) Shutdown(ctx context.Context, ip string) error {
	url := fmt.Sprintf("http://%s/shutdown", net.JoinHostPort(ip, fmt.Sprintf("%d", c.port)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("building shutdown request: %w", err)
	}
	if c.sharedSecret != "" {
		req.Header.Set("Authorization", "Bearer "+c.sharedSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAgentFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: agent returned %s", ErrAgentFailed, resp.Status)
	}
	return nil
}
