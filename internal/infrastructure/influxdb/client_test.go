package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/fleetwake/fleetwake/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "t",
		Org:     "o",
		Bucket:  "b",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect(unreachable) error = %v, want ErrConnectionFailed", err)
	}
}

func TestDisconnectedClient_IsSafe(t *testing.T) {
	c := &Client{}

	if c.IsConnected() {
		t.Error("zero client should not report connected")
	}

	// Writes on a disconnected client are dropped, not panics.
	c.WritePresenceSample(1, "workstation", true)
	c.WriteCommandSample(1, "wake")
	c.Flush()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
