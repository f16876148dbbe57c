package config

import (
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/thermals/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval         = 1
	DefaultCapacity         = 60 * 60 * 3
	DefaultSpan             = 60 * 3
	DefaultMargin           = 0.025
	DefaultMinPxPerBucket   = 1.5
	DefaultGridMinSpacing   = 40
	DefaultPointerTolerance = 10
	DefaultHwmonRoot        = "/sys/class/hwmon"
	DefaultListen           = "127.0.0.1:9105"
	DefaultLogLevel         = "info"
	DefaultTelemetryDB      = "/var/lib/thermals/telemetry.db"
	DefaultColor            = "#7f7f7f"

	configName = "thermals"
	envPrefix  = "THERMALS"
)

// DefaultResolutions are the bucket widths in seconds, finest first.
var DefaultResolutions = []int{1, 3, 10, 30}

// DefaultSpans mirror the history selector of the desktop application.
var DefaultSpans = []Span{
	{Label: "3 mins", Seconds: 60 * 3},
	{Label: "10 mins", Seconds: 60 * 10},
	{Label: "30 mins", Seconds: 60 * 30},
	{Label: "1 hour", Seconds: 60 * 60},
	{Label: "3 hours", Seconds: 60 * 60 * 3},
	{Label: "10 hours", Seconds: 60 * 60 * 10},
}

type Config struct {
	Interval         int                     `mapstructure:"interval"`
	Resolutions      []int                   `mapstructure:"resolutions"`
	Capacity         int                     `mapstructure:"capacity"`
	Span             int                     `mapstructure:"span"`
	Spans            []Span                  `mapstructure:"spans"`
	Margin           float64                 `mapstructure:"margin"`
	MinPxPerBucket   float64                 `mapstructure:"min_px_per_bucket"`
	GridMinSpacing   float64                 `mapstructure:"grid_min_spacing"`
	PointerTolerance int                     `mapstructure:"pointer_tolerance"`
	HwmonRoot        string                  `mapstructure:"hwmon_root"`
	GPU              bool                    `mapstructure:"gpu"`
	Listen           string                  `mapstructure:"listen"`
	LogLevel         string                  `mapstructure:"log_level"`
	Metrics          bool                    `mapstructure:"metrics"`
	Telemetry        bool                    `mapstructure:"telemetry"`
	TelemetryDB      string                  `mapstructure:"telemetry_db"`
	Sensors          map[string]SensorConfig `mapstructure:"sensors"`
}

// Load reads the configuration from the config file, the environment and
// the command line, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: envPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	configFlag := flags.String("config", "", "Path to the configuration file")
	flags.Int("interval", DefaultInterval, "Seconds between sensor reads")
	flags.Int("capacity", DefaultCapacity, "Measurements kept per sensor and resolution")
	flags.IntSlice("resolutions", DefaultResolutions, "Bucket widths in seconds, ascending")
	flags.Int("span", DefaultSpan, "Default plotted time span in seconds")
	flags.String("hwmon-root", DefaultHwmonRoot, "Root of the hwmon sysfs hierarchy")
	flags.Bool("gpu", false, "Read NVIDIA GPU sensors through NVML")
	flags.String("listen", DefaultListen, "HTTP listen address")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("metrics", true, "Expose Prometheus metrics")
	flags.Bool("telemetry", false, "Record samples to the telemetry database")
	flags.String("telemetry-db", DefaultTelemetryDB, "Path to the telemetry database")

	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := o.configPath
	if *configFlag != "" {
		path = *configFlag
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, path); err != nil {
		return nil, err
	}

	// Only flags given explicitly override the file
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(key, sv.GetSlice())
			return
		}
		v.Set(key, f.Value.String())
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("resolutions", DefaultResolutions)
	v.SetDefault("capacity", DefaultCapacity)
	v.SetDefault("span", DefaultSpan)
	v.SetDefault("spans", DefaultSpans)
	v.SetDefault("margin", DefaultMargin)
	v.SetDefault("min_px_per_bucket", DefaultMinPxPerBucket)
	v.SetDefault("grid_min_spacing", DefaultGridMinSpacing)
	v.SetDefault("pointer_tolerance", DefaultPointerTolerance)
	v.SetDefault("hwmon_root", DefaultHwmonRoot)
	v.SetDefault("gpu", false)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("metrics", true)
	v.SetDefault("telemetry", false)
	v.SetDefault("telemetry_db", DefaultTelemetryDB)
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath("/etc")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Capacity <= 0 {
		return errFactory.WithData(errors.ErrInvalidCapacity, c.Capacity)
	}
	if c.Span <= 0 {
		return errFactory.WithData(errors.ErrInvalidSpan, c.Span)
	}
	if len(c.Resolutions) == 0 {
		return errFactory.New(errors.ErrInvalidResolutions)
	}
	for i, r := range c.Resolutions {
		if r <= 0 || (i > 0 && r <= c.Resolutions[i-1]) {
			return errFactory.WithData(errors.ErrInvalidResolutions, c.Resolutions)
		}
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Sensor keys are lower-cased by viper, so lookups are case-insensitive.

// SensorColor returns the configured colour of a sensor, or the default grey.
func (c *Config) SensorColor(id string) string {
	if sc, ok := c.Sensors[strings.ToLower(id)]; ok && sc.Color != "" {
		return sc.Color
	}

	return DefaultColor
}

// SensorPlotted reports whether a sensor is drawn. Sensors are plotted unless
// disabled explicitly.
func (c *Config) SensorPlotted(id string) bool {
	if sc, ok := c.Sensors[strings.ToLower(id)]; ok && sc.Plot != nil {
		return *sc.Plot
	}

	return true
}
