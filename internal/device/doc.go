// Package device implements the per-device handler layer.
//
// A Handler is the live object behind one accessory: it refreshes the
// device's state from the cloud (SyncState), executes host commands
// (HandleCommand), and publishes state to the device's MQTT state
// topic. One variant exists per bridged category — Fan, Outlet,
// Switch, Bulb — and the Factory dispatches on the cloud model family.
//
// Handlers never retry. A sync or command failure is returned to the
// caller; the bridge package owns backoff and session recovery.
package device
