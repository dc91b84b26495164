// Package batch implements the string-or-array argument convention the
// MCP tools use for bulk retrieval: a parameter may carry a single ID,
// a JSON array of IDs, or an array serialized as a string. It also
// runs the per-item work and folds the outcomes into one result that
// reports partial failures instead of aborting the whole batch.
package batch
