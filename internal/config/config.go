package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocoder GeocoderConfig `yaml:"geocoder" mapstructure:"geocoder"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
}

// StoreConfig configures the geospatial backing store.
type StoreConfig struct {
	// Driver selects the skistore implementation: "postgres" or "sqlite".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`

	// TraversalTimeout and EnumerationTimeout default to 120s and 3600s.
	// EnumerationTimeout is the deadline pipeline.Run puts on each phase as a
	// whole; no per-query deadline is set. TraversalTimeout is not applied.
	TraversalTimeout   time.Duration `yaml:"traversal_timeout" mapstructure:"traversal_timeout"`
	EnumerationTimeout time.Duration `yaml:"enumeration_timeout" mapstructure:"enumeration_timeout"`
}

// GeocoderConfig configures the optional reverse-geocoding collaborator.
type GeocoderConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Retry and circuit-breaker tuning for outbound reverse-geocode calls.
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetTimeoutSecs int     `yaml:"circuit_reset_timeout_secs" mapstructure:"circuit_reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PipelineConfig configures the clustering pipeline's tunable distances and
// concurrency, per spec.md §4.3/§4.4/§5.
type PipelineConfig struct {
	// BufferKM and MergeCandidateBufferKM default to 0.5 and 0.25. The
	// pipeline does not read them: buffered traversal always hops 0.5 km
	// (traverse.bufferKM) and P3 merge discovery always searches 0.25 km
	// (phase3.mergeCandidateBufferKM).
	BufferKM float64 `yaml:"buffer_km" mapstructure:"buffer_km"`
	MergeCandidateBufferKM float64 `yaml:"merge_candidate_buffer_km" mapstructure:"merge_candidate_buffer_km"`
	// BatchConcurrency bounds within-batch parallel ski-area processing.
	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SKICLUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.batch_size", 50)
	v.SetDefault("store.traversal_timeout", 120*time.Second)
	v.SetDefault("store.enumeration_timeout", 3600*time.Second)
	v.SetDefault("geocoder.enabled", false)
	v.SetDefault("geocoder.rate_limit_rps", 5.0)
	v.SetDefault("geocoder.timeout", 10*time.Second)
	v.SetDefault("geocoder.retry_max_attempts", 3)
	v.SetDefault("geocoder.retry_initial_backoff_ms", 500)
	v.SetDefault("geocoder.retry_max_backoff_ms", 30000)
	v.SetDefault("geocoder.retry_multiplier", 2.0)
	v.SetDefault("geocoder.retry_jitter_fraction", 0.25)
	v.SetDefault("geocoder.circuit_failure_threshold", 5)
	v.SetDefault("geocoder.circuit_reset_timeout_secs", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.buffer_km", 0.5)
	v.SetDefault("pipeline.merge_candidate_buffer_km", 0.25)
	v.SetDefault("pipeline.batch_concurrency", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
