package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	API struct {
		URL     string `yaml:"url"`
		Offline bool   `yaml:"offline"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Store struct {
		Driver    string `yaml:"driver"`
		Dir       string `yaml:"dir"`
		Freshness string `yaml:"freshness"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Session struct {
		AutosaveDelay string `yaml:"autosave_delay"`
		GraceDelay    string `yaml:"grace_delay"`
		TickSaveEvery int    `yaml:"tick_save_every"`
	} `yaml:"session"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.API.URL = "http://localhost:8000"
	cfg.Store.Driver = DriverFile
	cfg.Store.Dir = defaultStoreDir()
	cfg.Store.Freshness = "24h"
	cfg.Questions.TTL = "10m"
	cfg.Session.AutosaveDelay = "1s"
	cfg.Session.GraceDelay = "2s"
	cfg.Session.TickSaveEvery = 30
	cfg.Log.Level = "info"
	cfg.Log.Format = "pretty"
	return cfg
}

// Load reads YAML config from path over the defaults, then applies a .env
// file and environment overrides. A missing file is not an error. Callers
// apply their own overrides and then call Validate.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Port)
	setString("MOCKTEST_API_URL", &c.API.URL)
	setString("MOCKTEST_STORE", &c.Store.Driver)
	setString("MOCKTEST_STORE_DIR", &c.Store.Dir)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("DATABASE_URL", &c.Postgres.URL)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)

	if v, ok := os.LookupEnv("MOCKTEST_OFFLINE"); ok && v != "" {
		offline, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MOCKTEST_OFFLINE: %w", err)
		}
		c.API.Offline = offline
	}
	return nil
}

// Validate checks the fields the rest of the program relies on.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Store.Dir == "" {
			return errors.New("store.dir is required for the file driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !c.API.Offline && c.API.URL == "" {
		return errors.New("api.url is required unless api.offline is set")
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func defaultStoreDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + string(os.PathSeparator) + "mocktest"
	}
	return ".mocktest"
}
