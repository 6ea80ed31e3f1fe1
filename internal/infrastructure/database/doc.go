// Package database provides SQLite persistence for the VeSync bridge.
//
// The bridge persists its accessory set so that a device rediscovered
// after a restart reconciles to the same accessory record it had before.
// SQLite is used in WAL mode with a single writer connection, which
// matches the bridge's single-flight reconciliation model.
//
// Migrations are embedded into the binary (see the migrations package)
// and applied automatically at startup, each in its own transaction.
package database
