// Package artifact renders anonymized slices into a portable bundle: one
// lossless 16-bit grayscale PNG per slice plus a JSON manifest recording
// selection rationale, retained metadata, and processing parameters.
package artifact
