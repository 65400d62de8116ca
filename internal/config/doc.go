// Package config loads, validates, and normalizes Gantry configuration from
// TOML files, providing defaults suitable for local development.
package config
