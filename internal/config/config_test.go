package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ndjsonconv/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("NDJSONCONV_CONCURRENCY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "ndjsonconv", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".cache", "ndjsonconv", "spool"); cfg.Paths.SpoolDir != want {
		t.Fatalf("unexpected spool dir: got %q want %q", cfg.Paths.SpoolDir, want)
	}
	if cfg.Paths.LogDir != "" {
		t.Fatalf("expected empty log dir by default, got %q", cfg.Paths.LogDir)
	}
	if cfg.Download.Concurrency != 100 || cfg.Download.TimeoutSeconds != 30 || cfg.Download.MaxImageMiB != 50 {
		t.Fatalf("unexpected download defaults: %+v", cfg.Download)
	}
	if cfg.Download.AllowPrivateHosts {
		t.Fatal("expected private hosts to be refused by default")
	}
	if cfg.Archive.CompressionLevel != 6 {
		t.Fatalf("unexpected compression level: %d", cfg.Archive.CompressionLevel)
	}
	if cfg.MaxImageBytes() != 50<<20 {
		t.Fatalf("unexpected max image bytes: %d", cfg.MaxImageBytes())
	}
	if cfg.DownloadTimeout().Seconds() != 30 {
		t.Fatalf("unexpected timeout: %s", cfg.DownloadTimeout())
	}
}

func TestDefaultSpoolDirHonoursXDGCacheHome(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	cfg := config.Default()
	if want := filepath.Join(cache, "ndjsonconv", "spool"); cfg.Paths.SpoolDir != want {
		t.Fatalf("spool dir = %q, want %q", cfg.Paths.SpoolDir, want)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("NDJSONCONV_CONCURRENCY", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[download]
concurrency = 8
timeout_seconds = 5
max_image_mib = 2
allow_private_hosts = true
user_agent = "  test-agent  "

[archive]
compression_level = 0

[paths]
spool_dir = "~/spool"
log_dir = "~/logs"

[logging]
format = "JSON"
level = "DEBUG"
retention_days = -3
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Download.Concurrency != 8 || cfg.Download.TimeoutSeconds != 5 || cfg.Download.MaxImageMiB != 2 {
		t.Fatalf("unexpected download config: %+v", cfg.Download)
	}
	if !cfg.Download.AllowPrivateHosts {
		t.Fatal("expected allow_private_hosts to be honoured")
	}
	if cfg.Download.UserAgent != "test-agent" {
		t.Fatalf("expected trimmed user agent, got %q", cfg.Download.UserAgent)
	}
	if cfg.Archive.CompressionLevel != 0 {
		t.Fatalf("unexpected compression level: %d", cfg.Archive.CompressionLevel)
	}
	if cfg.Paths.SpoolDir != filepath.Join(tempHome, "spool") {
		t.Fatalf("unexpected spool dir: %q", cfg.Paths.SpoolDir)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Logging.RetentionDays != 0 {
		t.Fatalf("expected negative retention to clamp to 0, got %d", cfg.Logging.RetentionDays)
	}
}

func TestLoadConcurrencyFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NDJSONCONV_CONCURRENCY", "12")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Download.Concurrency != 12 {
		t.Fatalf("expected env concurrency 12, got %d", cfg.Download.Concurrency)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		env     string
		want    string
	}{
		{"zero concurrency", "[download]\nconcurrency = 0\n", "", "download.concurrency must be positive"},
		{"huge concurrency", "[download]\nconcurrency = 5000\n", "", "download.concurrency must be at most"},
		{"negative timeout", "[download]\ntimeout_seconds = -1\n", "", "download.timeout_seconds must be positive"},
		{"compression level", "[archive]\ncompression_level = 12\n", "", "archive.compression_level must be between"},
		{"log level", "[logging]\nlevel = \"loud\"\n", "", "logging.level"},
		{"unknown key", "[download]\nthreads = 4\n", "", "threads"},
		{"bad env", "", "lots", "NDJSONCONV_CONCURRENCY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			t.Setenv("NDJSONCONV_CONCURRENCY", tc.env)
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NDJSONCONV_CONCURRENCY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid toml: %v", err)
	}
	for _, section := range []string{"download", "archive", "paths", "logging"} {
		if _, ok := decoded[section]; !ok {
			t.Fatalf("sample missing [%s] section", section)
		}
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	want := config.Default()
	if cfg.Download != want.Download || cfg.Archive != want.Archive {
		t.Fatalf("sample diverges from defaults: %+v %+v", cfg.Download, cfg.Archive)
	}
}
