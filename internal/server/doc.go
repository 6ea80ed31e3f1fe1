// Package server exposes the bridge's operational HTTP endpoints:
// Prometheus metrics on /metrics and a liveness/readiness probe on
// /healthz. Device control never flows through here — that is MQTT's
// job — so the surface stays read-only and unauthenticated, suitable
// for scraping from a trusted network.
package server
