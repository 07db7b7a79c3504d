package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// maxPayloadSize caps MQTT payloads at 1MB, aligning with typical
// broker limits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified topic.
//
// QoS levels: 0 at most once, 1 at least once, 2 exactly once.
// Retained messages are stored by the broker and delivered to new
// subscribers; use them for state topics, not commands.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishPresence announces a device presence transition. The message
// is retained so late subscribers see the current state.
func (c *Client) PublishPresence(deviceID int64, online bool) error {
	payload, err := json.Marshal(map[string]any{
		"device_id": deviceID,
		"online":    online,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling presence event: %w", err)
	}
	return c.Publish(DevicePresenceTopic(deviceID), payload, byte(c.cfg.QoS), true)
}

// PublishCommand announces a wake or shutdown command issued by a user.
// Commands are events, not state, so they are not retained.
func (c *Client) PublishCommand(deviceID int64, command, username string) error {
	payload, err := json.Marshal(map[string]any{
		"device_id": deviceID,
		"command":   command,
		"username":  username,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling command event: %w", err)
	}
	return c.Publish(DeviceCommandTopic(deviceID), payload, byte(c.cfg.QoS), false)
}
