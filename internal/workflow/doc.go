// Package workflow coordinates triage runs end to end: registry-guarded
// triggering, the local load/select/anonymize/package pipeline, orchestrator
// submission, bounded status polling, and terminal write-back to the host
// store. Poll timing goes through a Clock seam so tests run without waiting.
package workflow
