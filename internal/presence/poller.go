// Package presence tracks which registered machines are reachable.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/fleetwake/fleetwake/internal/device"
)

// EventPublisher receives presence transitions. Satisfied by the MQTT
// client; nil disables event publishing.
type EventPublisher interface {
	PublishPresence(deviceID int64, online bool) error
}

// HistoryWriter receives presence samples. Satisfied by the InfluxDB
// client; nil disables history.
type HistoryWriter interface {
	WritePresenceSample(deviceID int64, name string, online bool)
}

// Config holds poller settings.
type Config struct {
	// Interval between poll rounds, in seconds.
	Interval int

	// Timeout for each TCP probe, in seconds.
	Timeout int

	// AgentPort is probed on each device; a machine with the agent
	// listening counts as online.
	AgentPort int
}

// Poller probes each registered device on a fixed interval and keeps
// the registry's is_online and last_seen_at columns current.
type Poller struct {
	devices   device.Repository
	events    EventPublisher
	history   HistoryWriter
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration
	agentPort int

	// dial is swapped out in tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// New creates a poller. events and history may be nil.
func New(devices device.Repository, events EventPublisher, history HistoryWriter, cfg Config, logger *slog.Logger) *Poller {
	interval := time.Duration(cfg.Interval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &Poller{
		devices:   devices,
		events:    events,
		history:   history,
		logger:    logger,
		interval:  interval,
		timeout:   timeout,
		agentPort: cfg.AgentPort,
		dial:      net.DialTimeout,
	}
}

// Run polls until the context is cancelled. It performs one round
// immediately so devices don't show stale state for a full interval
// after startup.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("presence poller started",
		"interval", p.interval.String(),
		"agent_port", p.agentPort,
	)

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("presence poller stopped")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce probes every device with an IP address and records the result.
func (p *Poller) pollOnce(ctx context.Context) {
	devices, err := p.devices.List(ctx)
	if err != nil {
		p.logger.Error("presence poll: listing devices", "error", err)
		return
	}

	for i := range devices {
		if ctx.Err() != nil {
			return
		}
		p.probe(ctx, &devices[i])
	}
}

// probe checks a single device and persists any state change.
// Devices without an IP address keep whatever state they have.
func (p *Poller) probe(ctx context.Context, d *device.Device) {
	if d.IPAddress == "" {
		return
	}

	online := p.isReachable(d.IPAddress)

	if err := p.devices.UpdatePresence(ctx, d.ID, online); err != nil {
		p.logger.Error("presence poll: updating device",
			"device_id", d.ID, "error", err)
		return
	}

	if p.history != nil {
		p.history.WritePresenceSample(d.ID, d.Name, online)
	}

	if online != d.IsOnline {
		p.logger.Info("device presence changed",
			"device_id", d.ID, "name", d.Name, "online", online)
		if p.events != nil {
			if err := p.events.PublishPresence(d.ID, online); err != nil {
				p.logger.Warn("presence poll: publishing event",
					"device_id", d.ID, "error", err)
			}
		}
	}
}

// isReachable reports whether anything accepts TCP on the agent port.
func (p *Poller) isReachable(ip string) bool {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", p.agentPort))
	conn, err := p.dial("tcp", addr, p.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
