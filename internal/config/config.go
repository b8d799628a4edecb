package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Padding PaddingConfig `mapstructure:"padding"`
	Osmosis OsmosisConfig `mapstructure:"osmosis"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Preview PreviewConfig `mapstructure:"preview"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Log     LogConfig     `mapstructure:"log"`
	Lenient bool          `mapstructure:"lenient"`
}

type PaddingConfig struct {
	Fraction  float64 `mapstructure:"fraction"`
	Symmetric bool    `mapstructure:"symmetric"`
}

type OsmosisConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"` // 0 waits forever
	FailOnError bool          `mapstructure:"fail_on_error"`
}

type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	File string `mapstructure:"file"`
}

type PreviewConfig struct {
	Path    string `mapstructure:"path"`
	Palette string `mapstructure:"palette"`
	Quality int    `mapstructure:"quality"`
}

type BatchConfig struct {
	Workers int    `mapstructure:"workers"`
	OutDir  string `mapstructure:"out_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	TileSize        = 256
	WorldSizeWM     = 40075016.685578488
	OffsetWM        = 20037508.342789244
	EarthRadius     = 6378137.0
	ExtractZoom     = 12
	DefaultPadding  = 0.3
	DefaultOsmosis  = "osmosis/bin/osmosis"
	MaxMercatorLat  = 85.05112877980659
	EnvPrefix       = "XY2OSM"
	DefaultFileName = "xy2osm"
)

// New returns a viper instance carrying the defaults. Callers bind flags to it
// before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("padding.fraction", DefaultPadding)
	v.SetDefault("padding.symmetric", false)
	v.SetDefault("osmosis.path", DefaultOsmosis)
	v.SetDefault("osmosis.timeout", time.Duration(0))
	v.SetDefault("osmosis.fail_on_error", false)
	v.SetDefault("ledger.path", "")
	v.SetDefault("metrics.file", "")
	v.SetDefault("preview.path", "")
	v.SetDefault("preview.palette", "")
	v.SetDefault("preview.quality", 90)
	v.SetDefault("batch.workers", runtime.NumCPU())
	v.SetDefault("batch.out_dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("lenient", false)

	// XY2OSM_OSMOSIS_PATH -> osmosis.path
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file and decodes v into a Config.
// An explicit file must exist; the default search path may be empty.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Padding.Fraction < 0 {
		errs = append(errs, fmt.Sprintf("padding.fraction must not be negative, got %g", c.Padding.Fraction))
	}
	if c.Osmosis.Path == "" {
		errs = append(errs, "osmosis.path is required")
	}
	if c.Osmosis.Timeout < 0 {
		errs = append(errs, "osmosis.timeout must not be negative")
	}
	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		errs = append(errs, fmt.Sprintf("preview.quality must be 1-100, got %d", c.Preview.Quality))
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("batch.workers must be positive, got %d", c.Batch.Workers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
