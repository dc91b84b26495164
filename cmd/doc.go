// Package cmd implements the command-line interface for meetbridge.
//
// This package provides the following commands:
//   - serve: Start the webhook ingestor, content API and MCP server
//   - backfill: Import historical meetings into the participation ledger
//   - sweep: Delete ledger records past the retention window
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The serve command is the default command when no subcommand is specified.
package cmd
