// Package orchestrator submits triage runs to an Airflow-compatible workflow
// orchestrator and polls their state. Submission failures are classified as
// transient (unreachable, 5xx) or rejected (4xx) so callers can decide
// between retry and terminal failure.
package orchestrator
