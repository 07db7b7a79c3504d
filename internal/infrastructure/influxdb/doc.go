// Package influxdb records presence history in InfluxDB v2.
//
// The integration is optional. When enabled, every presence poll
// writes a sample of each device's online state, and wake/shutdown
// commands are counted, so uptime and usage can be graphed over time.
//
// Writes are batched and non-blocking: the poller never waits on the
// time-series store, and write failures surface through an error
// callback instead of the hot path.
package influxdb
