// Package common provides shared utilities for MCP tool implementations:
// bearer token resolution from transport context or tool arguments, and
// instrumented handler wrappers for metrics and audit logging.
package common
