// Package fixer runs the fix loop for failing tests. The Coordinator handles
// a single attempt (generate, apply, verify, revert on failure) and the
// Orchestrator retries each case with escalating temperature, emitting Events
// that the CLI and TUI consume.
package fixer
