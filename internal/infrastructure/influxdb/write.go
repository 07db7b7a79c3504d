package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePresenceSample records a device's online state as seen by the
// presence poller. The write is non-blocking; samples are batched and
// sent asynchronously.
func (c *Client) WritePresenceSample(deviceID int64, name string, online bool) {
	if !c.IsConnected() {
		return
	}

	onlineValue := 0
	if online {
		onlineValue = 1
	}

	point := write.NewPoint(
		"device_presence",
		map[string]string{
			"device_id": strconv.FormatInt(deviceID, 10),
			"name":      name,
		},
		map[string]interface{}{
			"online": onlineValue,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandSample records a wake or shutdown command so command
// frequency can be graphed alongside presence.
func (c *Client) WriteCommandSample(deviceID int64, command string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_commands",
		map[string]string{
			"device_id": strconv.FormatInt(deviceID, 10),
			"command":   command,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
