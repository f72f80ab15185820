package config

const (
	defaultConfigPath       = "~/.config/ndjsonconv/config.toml"
	projectConfigName       = "ndjsonconv.toml"
	defaultConcurrency      = 100
	defaultTimeoutSeconds   = 30
	defaultMaxImageMiB      = 50
	defaultUserAgent        = "ndjsonconv/dev"
	defaultCompressionLevel = 6
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 14
	concurrencyEnv          = "NDJSONCONV_CONCURRENCY"
	maxConcurrency          = 1024
	maxImageMiBLimit        = 1024
	minimumCompressionLevel = -1
	maximumCompressionLevel = 9
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Download: Download{
			Concurrency:    defaultConcurrency,
			TimeoutSeconds: defaultTimeoutSeconds,
			MaxImageMiB:    defaultMaxImageMiB,
			UserAgent:      defaultUserAgent,
		},
		Archive: Archive{
			CompressionLevel: defaultCompressionLevel,
		},
		Paths: Paths{
			SpoolDir: defaultSpoolDir(),
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
