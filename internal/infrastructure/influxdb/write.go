package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records a device state observation.
//
// Called after each successful device sync so state history accumulates
// at the poll interval. The write is non-blocking; data is batched and
// sent asynchronously.
//
// Parameters:
//   - compositeID: Stable device identifier (cid, or cid_subDeviceNo for outlets on a multi-outlet strip)
//   - category: Accessory category ("fan", "outlet", "switch", "bulb")
//   - on: Whether the device reports itself powered on
//   - level: Category-specific level (fan speed percent, bulb brightness), 0 if not applicable
//
// Example:
//
//	client.WriteDeviceState("cid-123", "fan", true, 66)
func (c *Client) WriteDeviceState(compositeID, category string, on bool, level float64) {
	if !c.IsConnected() {
		return
	}

	onValue := 0.0
	if on {
		onValue = 1.0
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": compositeID,
			"category":  category,
		},
		map[string]interface{}{
			"on":    onValue,
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollCycle records statistics for one completed poll cycle.
//
// Parameters:
//   - duration: Wall-clock time the cycle took, including retries
//   - deviceCount: Number of devices in the fetched snapshot
//   - created, updated, removed: Reconciliation outcome counts
func (c *Client) WritePollCycle(duration time.Duration, deviceCount, created, updated, removed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"poll_cycle",
		map[string]string{},
		map[string]interface{}{
			"duration_ms":  float64(duration.Milliseconds()),
			"device_count": deviceCount,
			"created":      created,
			"updated":      updated,
			"removed":      removed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandResult records the outcome and latency of a device command.
//
// Parameters:
//   - compositeID: Device identifier
//   - action: Command name (e.g. "set_switch", "set_level")
//   - success: Whether the cloud accepted the command
//   - latency: Round-trip time for the API call
func (c *Client) WriteCommandResult(compositeID, action string, success bool, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	successValue := 0.0
	if success {
		successValue = 1.0
	}

	point := write.NewPoint(
		"command",
		map[string]string{
			"device_id": compositeID,
			"action":    action,
		},
		map[string]interface{}{
			"success":    successValue,
			"latency_ms": float64(latency.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
