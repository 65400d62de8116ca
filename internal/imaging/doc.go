// Package imaging loads volumetric DICOM series from directory or ZIP
// containers into ordered in-memory slices with per-slice metadata, applying
// rescale transforms and tolerating a bounded fraction of unreadable files.
package imaging
