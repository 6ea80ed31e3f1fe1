// Package config loads and validates the VeSync bridge configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults
//  2. A YAML file (default: configs/config.yaml)
//  3. VESYNC_* environment variables
//
// Secrets (the VeSync password, MQTT credentials, InfluxDB token) should
// be supplied through the environment rather than the file, so the file
// can be committed to configuration management without leaking them.
//
// Validation is strict about credentials: every other failure mode in the
// bridge is retried indefinitely, but a missing username or password is
// reported immediately at startup as a terminal error.
package config
