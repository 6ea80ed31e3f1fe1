// Package accessory maintains the persisted accessory set: the bridge's
// durable record of every cloud device it has exposed to the host.
//
// Each cloud device maps to exactly one Record. The mapping is
// deterministic: UUIDFor derives the accessory identifier from the
// device's composite id, so the same device reconciles to the same
// accessory across polls and restarts regardless of fetch order.
//
// Records persist in SQLite through Repository; Registry layers an
// in-memory cache and lifecycle notifications on top. Reconciliation
// (in the bridge package) is the only writer.
package accessory
