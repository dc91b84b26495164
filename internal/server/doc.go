// Package server provides the serving shell for meetbridge: the server
// context, the HTTP surfaces and the health and metrics endpoints.
//
// # Key Components
//
// ServerContext wires the participation ledger, the admin-credential platform
// client, the webhook ingestor, the access-controlled proxy and the retention
// sweeper together, and owns their shutdown.
//
// HealthChecker serves /healthz and /readyz for Kubernetes probes, including
// an optional ledger backend probe for readiness.
//
// MetricsServer exposes Prometheus metrics on a dedicated port, isolated from
// application traffic.
package server
