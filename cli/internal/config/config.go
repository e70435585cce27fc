// Package config loads the CLI connection settings from flags, environment,
// .env files and an optional .nestbox.yaml.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// AppFs is the filesystem the CLI reads and writes through.
var AppFs = afero.NewOsFs()

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "NESTBOX"

// Config holds the application configuration
type Config struct {
	Provider       string        `mapstructure:"provider"`
	DSN            string        `mapstructure:"dsn"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"pass"`
	Database       string        `mapstructure:"name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Verbose        bool          `mapstructure:"verbose"`
}

// keys maps config keys to the environment variables that set them.
var keys = map[string]string{
	"provider":        "NESTBOX_DB_PROVIDER",
	"dsn":             "NESTBOX_DB_DSN",
	"host":            "NESTBOX_DB_HOST",
	"port":            "NESTBOX_DB_PORT",
	"user":            "NESTBOX_DB_USER",
	"pass":            "NESTBOX_DB_PASS",
	"name":            "NESTBOX_DB_NAME",
	"connect_timeout": "NESTBOX_DB_TIMEOUT",
	"verbose":         "NESTBOX_VERBOSE",
}

// New returns a viper instance with defaults, search paths and environment
// bindings set up.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetConfigName(".nestbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "nestbox"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	v.SetDefault("provider", sqlgen.SQLite)
	v.SetDefault("host", "localhost")
	v.SetDefault("connect_timeout", database.DefaultConnectTimeout)
	v.SetDefault("verbose", false)
	return v, nil
}

// LoadDotEnv loads .env and then .env.local, which wins. Missing files are
// skipped.
func LoadDotEnv() error {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("failed to load .env.local: %w", err)
		}
	}
	return nil
}

// Load reads the config file, if any, and decodes the settings.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Database converts the CLI settings into a connection config.
func (c *Config) Database() database.Config {
	return database.Config{
		Provider:       c.Provider,
		DSN:            c.DSN,
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		Database:       c.Database,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// Save writes the settings, without the password, to
// ~/.config/nestbox/.nestbox.yaml.
func Save(cfg *Config) error {
	home, err := homedir.Dir()
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.Set("provider", cfg.Provider)
	v.Set("dsn", cfg.DSN)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("user", cfg.User)
	v.Set("name", cfg.Database)

	configPath := filepath.Join(home, ".config", "nestbox")
	if err := AppFs.MkdirAll(configPath, 0o755); err != nil {
		return err
	}
	return v.WriteConfigAs(filepath.Join(configPath, ".nestbox.yaml"))
}
