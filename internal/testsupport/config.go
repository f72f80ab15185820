package testsupport

import (
	"path/filepath"
	"testing"

	"ndjsonconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Private hosts are allowed so httptest servers on loopback are reachable.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SpoolDir = filepath.Join(base, "spool")
	cfgVal.Paths.LogDir = ""
	cfgVal.Download.Concurrency = 4
	cfgVal.Download.TimeoutSeconds = 5
	cfgVal.Download.AllowPrivateHosts = true
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return builder.cfg
}

// WithConcurrency overrides the download worker count.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.Concurrency = n
	}
}

// WithMaxImageMiB overrides the per-image size cap.
func WithMaxImageMiB(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.MaxImageMiB = n
	}
}

// WithPrivateHostsBlocked restores the production host policy.
func WithPrivateHostsBlocked() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.AllowPrivateHosts = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SpoolDir)
}
