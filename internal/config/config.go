package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultTool      = "nvidia-smi"
	DefaultHelper    = "pkexec"
	DefaultDevice    = -1
	DefaultBackend   = string(BackendSMI)
	DefaultInterval  = 2
	DefaultTimeout   = 5
	DefaultStep      = 5
	DefaultLogLevel  = string(LogLevelInfo)
	defaultEnvPrefix = "NVIDIAPL"
	configName       = "nvidiapl"
)

type Config struct {
	Tool      string `mapstructure:"tool"`
	Helper    string `mapstructure:"helper"`
	Device    int    `mapstructure:"device"`
	Backend   string `mapstructure:"backend"`
	Interval  int    `mapstructure:"interval"`
	Timeout   int    `mapstructure:"timeout"`
	Step      int    `mapstructure:"step"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
	Metrics   bool   `mapstructure:"metrics"`
	MetricsDB string `mapstructure:"metrics_db"`
}

// PollInterval returns the poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// QueryTimeout returns the per-invocation timeout as a duration
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// flag name -> config key
var flagKeys = map[string]string{
	"tool":       "tool",
	"helper":     "helper",
	"device":     "device",
	"backend":    "backend",
	"interval":   "interval",
	"timeout":    "timeout",
	"step":       "step",
	"log-level":  "log_level",
	"log-file":   "log_file",
	"metrics":    "metrics",
	"metrics-db": "metrics_db",
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to configuration file")
	fs.String("tool", DefaultTool, "Vendor tool used to query and set the GPU")
	fs.String("helper", DefaultHelper, "Privilege-escalation helper for setting limits (empty to run the tool directly)")
	fs.Int("device", DefaultDevice, "GPU index passed to the tool with -i (-1 uses the first GPU)")
	fs.String("backend", DefaultBackend, "Read backend: smi or nvml")
	fs.Int("interval", DefaultInterval, "Seconds between stats updates")
	fs.Int("timeout", DefaultTimeout, "Seconds before a tool query is abandoned")
	fs.Int("step", DefaultStep, "Watts per selector step in the dashboard")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.String("log-file", "", "Write logs to this file")
	fs.Bool("metrics", false, "Record stats samples to SQLite")
	fs.String("metrics-db", "", "Path to the metrics database")
}

// Load reads configuration from defaults, config file, environment and flags,
// in increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix:   defaultEnvPrefix,
		searchPaths: defaultSearchPaths(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
		if f := flags.Lookup("config"); f != nil && f.Changed {
			o.configPath = f.Value.String()
		}
	}

	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if cfg.Metrics && cfg.MetricsDB == "" {
		cfg.MetricsDB = defaultMetricsDB()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tool", DefaultTool)
	v.SetDefault("helper", DefaultHelper)
	v.SetDefault("device", DefaultDevice)
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("step", DefaultStep)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_db", "")
}

func readConfigFile(v *viper.Viper, o *options) error {
	errFactory := errors.New()

	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}

		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("toml")
	for _, p := range o.searchPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Tool == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "tool must not be empty")
	}
	if !Backend(c.Backend).IsValid() {
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown backend "+c.Backend)
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Timeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "timeout must be positive")
	}
	if c.Step <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "step must be positive")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithMessage(errors.ErrInvalidLogLevel, "invalid_log_level: "+c.LogLevel)
	}
	if c.Metrics && c.MetricsDB == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics_db must be set when metrics is enabled")
	}

	return nil
}

func defaultSearchPaths() []string {
	paths := []string{"/etc"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, configName))
	}

	return paths
}

func defaultMetricsDB() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), configName, "metrics.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}

	return filepath.Join(dir, configName, "metrics.db")
}
