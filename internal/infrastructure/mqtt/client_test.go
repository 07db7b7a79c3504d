package mqtt

import (
	"strings"
	"testing"

	"github.com/fleetwake/fleetwake/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	if got := DevicePresenceTopic(7); got != "fleetwake/device/7/presence" {
		t.Errorf("DevicePresenceTopic(7) = %q", got)
	}
	if got := DeviceCommandTopic(7); got != "fleetwake/device/7/command" {
		t.Errorf("DeviceCommandTopic(7) = %q", got)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     1883,
			ClientID: "fleetwake-test",
		},
		Auth: config.MQTTAuthConfig{Username: "u", Password: "p"},
		QoS:  1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected one broker URL, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %q", got)
	}
	if opts.ClientID != "fleetwake-test" {
		t.Errorf("client ID = %q", opts.ClientID)
	}
	if opts.Username != "u" {
		t.Errorf("username = %q", opts.Username)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "broker.local", Port: 8883, TLS: true},
	}

	opts := buildClientOptions(cfg)
	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config should be set")
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("fleetwake-core")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "fleetwake-core") {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("fleetwake-core")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: config.MQTTConfig{QoS: 1}}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("bad QoS error = %v, want ErrInvalidQoS", err)
	}
}
