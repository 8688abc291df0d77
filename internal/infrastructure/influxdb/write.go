package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFetchMetric records the outcome of one scatter-gather fetch.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - templateID: Device template the fetch was executed for
//   - replies: Number of repository replies received across all stages
//   - devices: Number of device descriptions after processing
//   - duration: Wall-clock time of the whole exchange
//
// Example:
//
//	client.WriteFetchMetric("template-42", 3, 17, elapsed)
func (c *Client) WriteFetchMetric(templateID string, replies int, devices int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery_fetch",
		map[string]string{
			"template_id": templateID,
		},
		map[string]interface{}{
			"replies":     replies,
			"devices":     devices,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTaskMetric records the outcome of an executed discovery task.
//
// Parameters:
//   - taskName: Task type (e.g., "update_candidate_devices")
//   - templateID: Device template the task ran for
//   - outcome: "success", "no_op" or "error"
//   - duration: Task execution time
func (c *Client) WriteTaskMetric(taskName string, templateID string, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery_task",
		map[string]string{
			"task":        taskName,
			"template_id": templateID,
			"outcome":     outcome,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteNotificationMetric records an asynchronous repository notification.
//
// Parameters:
//   - templateID: Template the notification referenced
//   - repository: Name of the sending repository
func (c *Client) WriteNotificationMetric(templateID string, repository string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery_notification",
		map[string]string{
			"template_id": templateID,
			"repository":  repository,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
