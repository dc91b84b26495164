// Package logging provides shared slog helpers: attribute key constants,
// email anonymization for PII-safe logs, and token masking.
package logging
