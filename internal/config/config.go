package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Orchestrator contains configuration for the external workflow orchestrator.
type Orchestrator struct {
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	APIToken       string `toml:"api_token"`
	DAGID          string `toml:"dag_id"`
	RequestTimeout int    `toml:"request_timeout"`
}

// HostStore contains configuration for the host dataset store write-back.
type HostStore struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Triage contains configuration for series loading and slice selection.
type Triage struct {
	// SliceCount is the representative subset size per series.
	SliceCount int `toml:"slice_count"`
	// Scoring selects the band-representative strategy: "midpoint" or "variance".
	Scoring string `toml:"scoring"`
	// MaxUnreadableFraction is the tolerated share of undecodable files in a
	// container before the load fails outright.
	MaxUnreadableFraction float64 `toml:"max_unreadable_fraction"`
	// Workers bounds parallel slice anonymization within one run.
	Workers int `toml:"workers"`
}

// Region is a fixed overlay rectangle for the "regions" detector, origin
// top-left in pixel coordinates.
type Region struct {
	X int `toml:"x"`
	Y int `toml:"y"`
	W int `toml:"w"`
	H int `toml:"h"`
}

// Anonymize contains configuration for metadata and pixel de-identification.
type Anonymize struct {
	// RedactionToken replaces values for replace-policy tags.
	RedactionToken string `toml:"redaction_token"`
	// Detector selects the burned-in-text detector: "regions" or "gradient".
	Detector string `toml:"detector"`
	// EdgeMarginPercent is the frame-edge band, as a percentage of each
	// dimension, inspected (and optionally blanked) for burned-in text.
	EdgeMarginPercent float64 `toml:"edge_margin_percent"`
	// ConfidenceThreshold is the detector score above which a region is redacted.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// LowConfidenceAction is the explicit policy when detection confidence is
	// below threshold: "blank-margin" or "leave".
	LowConfidenceAction string `toml:"low_confidence_action"`
	// Regions lists known overlay rectangles for the "regions" detector.
	Regions []Region `toml:"regions"`
}

// Workflow contains configuration for status polling and timing.
type Workflow struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MaxPollAttempts     int `toml:"max_poll_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Gantry.
//
// Configuration sections by subsystem:
//   - Paths: working/log directories and API bind address
//   - Orchestrator: external workflow orchestrator connection
//   - HostStore: host dataset store for artifact write-back
//   - Triage: series loading tolerance and slice selection
//   - Anonymize: metadata redaction token and pixel detectors
//   - Workflow: status poll interval and retry bound
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Orchestrator Orchestrator `toml:"orchestrator"`
	HostStore    HostStore    `toml:"host_store"`
	Triage       Triage       `toml:"triage"`
	Anonymize    Anonymize    `toml:"anonymize"`
	Workflow     Workflow     `toml:"workflow"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/gantry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("gantry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
