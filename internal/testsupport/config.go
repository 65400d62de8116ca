package testsupport

import (
	"path/filepath"
	"testing"

	"gantry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.HostStore.URL = "http://127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithOrchestratorURL points the test config at a stub orchestrator.
func WithOrchestratorURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Orchestrator.URL = url
	}
}

// WithHostStoreURL points the test config at a stub host store.
func WithHostStoreURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.HostStore.URL = url
	}
}
