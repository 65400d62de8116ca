// Package services defines shared utilities consumed by the triage pipeline
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp dataset item IDs, run IDs, and component
//     names for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the pipeline's error taxonomy (input, policy, transient, rejected,
//     conflict) so retry and terminal-state decisions stay uniform.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays consistent end to end.
package services
