// Package influxdb provides time-series telemetry storage for the bridge.
//
// The bridge records three measurement families:
//   - device_state: per-device on/off and level at each sync
//   - poll_cycle: duration and reconciliation counts per discovery cycle
//   - command: latency and outcome of host-issued commands
//
// Writes use the non-blocking batched WriteAPI, so telemetry cannot
// stall device synchronization. Write errors surface through the
// SetOnError callback.
//
// The integration is optional: when disabled in configuration, Connect
// returns ErrDisabled and callers run without telemetry.
package influxdb
