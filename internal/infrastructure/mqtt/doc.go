// Package mqtt provides MQTT client connectivity for the VeSync bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the bridge's host-facing surface: discovered accessories,
// their state, and the bridge's own health are published here, and
// command topics feed host-triggered actions back into the bridge.
//
//	VeSync Cloud ↔ Bridge ↔ MQTT Broker ↔ Home-automation host
//
// # Topic scheme
//
//	vesync/state/{category}/{uuid}      retained device state
//	vesync/command/{category}/{uuid}    inbound commands
//	vesync/ack/{category}/{uuid}        command results
//	vesync/accessory/{event}/{uuid}     lifecycle events (added/updated/removed)
//	vesync/system/status                bridge online/offline (retained, LWT)
//	vesync/system/health                periodic health reports
package mqtt
