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
	SEC     SECConfig     `yaml:"sec" mapstructure:"sec"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	House   HouseConfig   `yaml:"house" mapstructure:"house"`
	Roster  RosterConfig  `yaml:"roster" mapstructure:"roster"`
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SECConfig configures access to EDGAR. UserAgent is the identifying header
// EDGAR requires; override it with INSIDER_SEC_USER_AGENT.
type SECConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// HTTPConfig configures the shared fetcher.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
}

// CacheConfig configures the HTTP response cache.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // "memory" or "sqlite"
	Path   string `yaml:"path" mapstructure:"path"`     // sqlite file location
}

// SourcesConfig enables/disables adapters and overrides their endpoints.
type SourcesConfig struct {
	OpenInsider     bool   `yaml:"openinsider" mapstructure:"openinsider"`
	SecForm4        bool   `yaml:"secform4" mapstructure:"secform4"`
	House           bool   `yaml:"house" mapstructure:"house"`
	Senate          bool   `yaml:"senate" mapstructure:"senate"`
	OpenInsiderBase string `yaml:"openinsider_base" mapstructure:"openinsider_base"`
	SecForm4Base    string `yaml:"secform4_base" mapstructure:"secform4_base"`
	HouseBase       string `yaml:"house_base" mapstructure:"house_base"`
	SenateBase      string `yaml:"senate_base" mapstructure:"senate_base"`
}

// HouseConfig configures the House disclosure adapter.
type HouseConfig struct {
	IndexDir      string `yaml:"index_dir" mapstructure:"index_dir"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// RosterConfig configures the affiliation roster.
type RosterConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	SourceURL string `yaml:"source_url" mapstructure:"source_url"`
}

// ScanConfig holds scan defaults.
type ScanConfig struct {
	Tickers []string `yaml:"tickers" mapstructure:"tickers"` // watched tickers
}

// ServerConfig configures the JSON API server.
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
	v.SetEnvPrefix("INSIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sec.user_agent", "insider-scan research tool admin@sells-group.com")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.path", "data/http_cache.db")
	v.SetDefault("sources.openinsider", true)
	v.SetDefault("sources.secform4", true)
	v.SetDefault("sources.house", true)
	v.SetDefault("sources.senate", true)
	v.SetDefault("house.index_dir", "data/house_disclosures")
	v.SetDefault("house.pdftotext_path", "pdftotext")
	v.SetDefault("roster.path", "data/congress_members.json")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

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
