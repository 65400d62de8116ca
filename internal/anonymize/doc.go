// Package anonymize removes identifying metadata from slices and redacts
// burned-in text regions from pixel data. Transforms are pure functions of
// (slice, policy), enabling safe parallel anonymization; a defensive
// post-transform check guarantees no must-remove keyword ever survives into
// an artifact.
package anonymize
