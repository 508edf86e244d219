package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Vault     VaultConfig     `yaml:"vault" mapstructure:"vault"`
	Navigator NavigatorConfig `yaml:"navigator" mapstructure:"navigator"`
	Region    RegionConfig    `yaml:"region" mapstructure:"region"`
	Portal    PortalConfig    `yaml:"portal" mapstructure:"portal"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Harvest   HarvestConfig   `yaml:"harvest" mapstructure:"harvest"`
	Docs      DocsConfig      `yaml:"docs" mapstructure:"docs"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// VaultConfig configures credential encryption. A passphrase is mandatory:
// the vault refuses to start without one rather than degrading to plaintext.
type VaultConfig struct {
	Passphrase string `yaml:"passphrase" mapstructure:"passphrase"`
}

// NavigatorConfig configures the browser-backed page navigator.
type NavigatorConfig struct {
	Headless        bool    `yaml:"headless" mapstructure:"headless"`
	PageTimeoutSecs int     `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	ChromePath      string  `yaml:"chrome_path" mapstructure:"chrome_path"`
}

// RegionBox is a rough bounding box for one target region.
type RegionBox struct {
	Region string  `yaml:"region" mapstructure:"region"`
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// RegionConfig configures the region classifier's geocode fallback.
type RegionConfig struct {
	ReferenceLat float64     `yaml:"reference_lat" mapstructure:"reference_lat"`
	ReferenceLon float64     `yaml:"reference_lon" mapstructure:"reference_lon"`
	MaxRadiusKM  float64     `yaml:"max_radius_km" mapstructure:"max_radius_km"`
	Boxes        []RegionBox `yaml:"boxes" mapstructure:"boxes"`
}

// PortalConfig configures portal detection.
type PortalConfig struct {
	// KeywordMatchThreshold is the fraction of extracted listing keywords
	// that must appear on a secondary site to confirm listing identity.
	// Heuristic with no documented rationale; kept configurable.
	KeywordMatchThreshold float64 `yaml:"keyword_match_threshold" mapstructure:"keyword_match_threshold"`
}

// DiscoveryConfig configures the capability-discovery agent.
type DiscoveryConfig struct {
	MaxSamplePages      int     `yaml:"max_sample_pages" mapstructure:"max_sample_pages"`
	PageTimeoutSecs     int     `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	ValidationThreshold float64 `yaml:"validation_threshold" mapstructure:"validation_threshold"`
	Analyzer            string  `yaml:"analyzer" mapstructure:"analyzer"` // "claude" or "heuristic"
}

// HarvestConfig configures the harvest orchestrator.
type HarvestConfig struct {
	MaxListings    int     `yaml:"max_listings" mapstructure:"max_listings"`
	CostCeiling    float64 `yaml:"cost_ceiling" mapstructure:"cost_ceiling"`
	MaxConcurrent  int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	PatternMinRate float64 `yaml:"pattern_min_rate" mapstructure:"pattern_min_rate"`
}

// DocsConfig configures document downloading.
type DocsConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for the claude analyzer.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PolicyConfig points at the flag-priority policy table.
type PolicyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the optional HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROCURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "procure.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("navigator.headless", true)
	v.SetDefault("navigator.page_timeout_secs", 30)
	v.SetDefault("navigator.requests_per_sec", 2.0)
	v.SetDefault("region.reference_lat", 34.0537)
	v.SetDefault("region.reference_lon", -118.2428)
	v.SetDefault("region.max_radius_km", 150)
	v.SetDefault("portal.keyword_match_threshold", 0.6)
	v.SetDefault("discovery.max_sample_pages", 3)
	v.SetDefault("discovery.page_timeout_secs", 20)
	v.SetDefault("discovery.validation_threshold", 0.5)
	v.SetDefault("discovery.analyzer", "heuristic")
	v.SetDefault("harvest.max_listings", 25)
	v.SetDefault("harvest.cost_ceiling", 10.0)
	v.SetDefault("harvest.max_concurrent", 1)
	v.SetDefault("harvest.pattern_min_rate", 0.5)
	v.SetDefault("docs.dir", "downloads")
	v.SetDefault("docs.max_file_bytes", 50*1024*1024)
	v.SetDefault("docs.timeout_secs", 60)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 2048)

	// Read config file (optional)
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
