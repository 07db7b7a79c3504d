package mqtt

import "fmt"

// Topic layout for Fleetwake events.
//
//	fleetwake/system/status              retained service status
//	fleetwake/device/<id>/presence       retained online/offline transitions
//	fleetwake/device/<id>/command        wake/shutdown commands as they happen
const (
	// TopicSystemStatus carries the retained service online/offline status.
	TopicSystemStatus = "fleetwake/system/status"
)

// DevicePresenceTopic returns the presence topic for a device.
func DevicePresenceTopic(deviceID int64) string {
	return fmt.Sprintf("fleetwake/device/%d/presence", deviceID)
}

// DeviceCommandTopic returns the command topic for a device.
func DeviceCommandTopic(deviceID int64) string {
	return fmt.Sprintf("fleetwake/device/%d/command", deviceID)
}
