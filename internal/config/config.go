package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vedsharma/apibench/internal/errors"
)

const (
	envPrefix      = "APIBENCH"
	dataDirName    = ".apibench"
	configFileName = "apibench"
	dbFile         = "apibench.db"

	// DefaultMaxResponseBytes limits response bodies to 50MB
	DefaultMaxResponseBytes = 50 * 1024 * 1024

	// DefaultTimeout is the transport timeout for dispatched requests
	DefaultTimeout = 30 * time.Second

	DefaultServerAddr    = "127.0.0.1:8787"
	DefaultAutosaveDelay = 500 * time.Millisecond
)

// Config is the apibench runtime configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Autosave AutosaveConfig `mapstructure:"autosave"`
	User     UserConfig     `mapstructure:"user"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HTTPConfig configures the request dispatcher
type HTTPConfig struct {
	Timeout                time.Duration `mapstructure:"timeout"`
	MaxResponseBytes       int64         `mapstructure:"max_response_bytes"`
	BlockMetadataEndpoints bool          `mapstructure:"block_metadata_endpoints"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig configures the JSON API served by `apibench serve`
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// AutosaveConfig configures key/value editor autosave
type AutosaveConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// UserConfig identifies the current user. Authentication is out of scope;
// the name is an opaque owner key for workspaces.
type UserConfig struct {
	Name string `mapstructure:"name"`
}

// DataDir returns ~/.apibench
func DataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, dataDirName), nil
}

// Load reads configuration from defaults, an optional TOML file, a .env file
// in the working directory and APIBENCH_* environment variables, in
// increasing precedence. configPath may be empty.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := SetDefaults(v); err != nil {
		return nil, err
	}

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
		}
	} else {
		v.SetConfigName(configFileName)
		if dir, err := DataDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "failed to read config")
			}
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper unmarshals configuration from a prepared Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) error {
	dir, err := DataDir()
	if err != nil {
		return errors.Wrap(err, "failed to resolve data directory")
	}
	v.SetDefault("database.path", filepath.Join(dir, dbFile))
	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.max_response_bytes", DefaultMaxResponseBytes)
	v.SetDefault("http.block_metadata_endpoints", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("autosave.delay", DefaultAutosaveDelay)
	v.SetDefault("user.name", currentUserName())
	return nil
}

// Validate rejects values the rest of the program cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.Invalidf("database.path must not be empty")
	}
	if c.HTTP.Timeout < 0 {
		return errors.Invalidf("http.timeout must not be negative, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxResponseBytes <= 0 {
		return errors.Invalidf("http.max_response_bytes must be positive, got %d", c.HTTP.MaxResponseBytes)
	}
	if c.Autosave.Delay < 0 {
		return errors.Invalidf("autosave.delay must not be negative, got %s", c.Autosave.Delay)
	}
	if strings.TrimSpace(c.User.Name) == "" {
		return errors.Invalidf("user.name must not be empty")
	}
	return nil
}

func currentUserName() string {
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if name := strings.TrimSpace(os.Getenv(key)); name != "" {
			return name
		}
	}
	return "local"
}
