package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	AppPort string `yaml:"app_port"`

	APIBaseURL string        `yaml:"api_base_url"`
	APITimeout time.Duration `yaml:"api_timeout"`

	StorageDriver    string `yaml:"storage_driver"`
	StoragePath      string `yaml:"storage_path"`
	StorageNamespace string `yaml:"storage_namespace"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	DatabaseDSN string `yaml:"database_dsn"`

	LogLevel string `yaml:"log_level"`
}

func Defaults() Config {
	return Config{
		AppPort:          "8080",
		APIBaseURL:       "http://localhost:3000/api",
		APITimeout:       15 * time.Second,
		StorageDriver:    DriverFile,
		StoragePath:      "./.planner-agent/state.json",
		StorageNamespace: "default",
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and finally the environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.AppPort, "APP_PORT")
	setString(&c.APIBaseURL, "API_BASE_URL")
	setString(&c.StorageDriver, "STORAGE_DRIVER")
	setString(&c.StoragePath, "STORAGE_PATH")
	setString(&c.StorageNamespace, "STORAGE_NAMESPACE")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.DatabaseDSN, "DATABASE_DSN")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing API_TIMEOUT: %w", err)
		}
		c.APITimeout = d
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports settings the selected storage driver cannot run without.
func (c Config) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_base_url is required"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, errors.New("api_timeout must be positive"))
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverFile:
		if c.StoragePath == "" {
			errs = append(errs, errors.New("storage_path is required for the file driver"))
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis driver"))
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("database_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage_driver %q", c.StorageDriver))
	}

	return errors.Join(errs...)
}
