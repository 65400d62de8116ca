// Package selection chooses a bounded, representative subset of slices from
// an ordered series using deterministic band-based sampling with pluggable
// scoring strategies.
package selection
