// Package logging provides structured logging for the VeSync bridge.
//
// It wraps log/slog with configuration-driven setup: output format
// (JSON or text), level filtering, and default service/version fields
// attached to every record.
//
// Components receive a child logger via With:
//
//	log := logger.With("component", "controller")
//	log.Info("cycle complete", "devices", 4)
package logging
