package agent

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// startTestAgent runs a fake agent and returns its IP plus a client
// configured to reach it.
func startTestAgent(t *testing.T, secret string, handler http.HandlerFunc) (string, *Client) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("splitting listener address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	return host, NewClient(Config{Port: port, SharedSecret: secret, Timeout: 2})
}

func TestShutdown_Success(t *testing.T) {
	var gotMethod, gotPath string
	ip, client := startTestAgent(t, "", func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Shutdown(context.Background(), ip); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/shutdown" {
		t.Errorf("agent saw %s %s, want POST /shutdown", gotMethod, gotPath)
	}
}

func TestShutdown_SharedSecret(t *testing.T) {
	var gotAuth string
	ip, client := startTestAgent(t, "s3cret", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Shutdown(context.Background(), ip); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want bearer shared secret", gotAuth)
	}
}

func TestShutdown_AgentError(t *testing.T) {
	ip, client := startTestAgent(t, "", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if err := client.Shutdown(context.Background(), ip); !errors.Is(err, ErrAgentFailed) {
		t.Errorf("Shutdown() error = %v, want ErrAgentFailed", err)
	}
}

func TestShutdown_Unreachable(t *testing.T) {
	client := NewClient(Config{Port: 1, Timeout: 1}) // nothing listens on port 1

	if err := client.Shutdown(context.Background(), "127.0.0.1"); !errors.Is(err, ErrAgentFailed) {
		t.Errorf("Shutdown() error = %v, want ErrAgentFailed", err)
	}
}
