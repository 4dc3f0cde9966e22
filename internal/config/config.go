package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeMock   Mode = "mock"
	ModeLive   Mode = "live"
	ModeHybrid Mode = "hybrid"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

type ProviderConfig struct {
	Enabled  bool `yaml:"enabled"`
	Priority int  `yaml:"priority"`
}

// PricingConfig configures the price predictor. APIKey is optional; the
// public predictor ignores it and self-hosted ones may require it.
type PricingConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
	Concurrency int           `yaml:"concurrency"`
}

type RevealConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type DriveConfig struct {
	AvgSpeedKmh float64 `yaml:"avgSpeedKmh"`
}

type FuelConfig struct {
	GasPrice    float64 `yaml:"gasPrice"`
	MPG         float64 `yaml:"mpg"`
	AvgSpeedMph float64 `yaml:"avgSpeedMph"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	Dir       string        `yaml:"dir"`
	RedisAddr string        `yaml:"redisAddr"`
}

type CatalogConfig struct {
	Path    string `yaml:"path"`
	ZipPath string `yaml:"zipPath"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Mode      Mode                      `yaml:"mode"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Pricing   PricingConfig             `yaml:"pricing"`
	Reveal    RevealConfig              `yaml:"reveal"`
	Drive     DriveConfig               `yaml:"drive"`
	Fuel      FuelConfig                `yaml:"fuel"`
	Cache     CacheConfig               `yaml:"cache"`
	Catalog   CatalogConfig             `yaml:"catalog"`
	Server    ServerConfig              `yaml:"server"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode: ModeMock,
		Providers: map[string]ProviderConfig{
			"mock_lodging": {Enabled: true, Priority: 100},
			"price_oracle": {Enabled: true, Priority: 50},
		},
		Pricing: PricingConfig{
			Endpoint:    "https://ski-planner-backend.onrender.com/predict_price",
			Timeout:     45 * time.Second,
			MaxAttempts: 3,
			Backoff:     300 * time.Millisecond,
			Concurrency: 3,
		},
		Reveal: RevealConfig{Interval: 350 * time.Millisecond},
		Drive:  DriveConfig{AvgSpeedKmh: 80},
		Fuel:   FuelConfig{GasPrice: 3.75, MPG: 28, AvgSpeedMph: 55},
		Cache: CacheConfig{
			Backend:   CacheNone,
			TTL:       6 * time.Hour,
			RedisAddr: "localhost:6379",
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads .env, the YAML config file and SKITRIP_* overrides, in that
// order. Missing files are not an error.
func Load() *Config {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path means the
// default location.
func LoadFile(path string) *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Debug("skipping .env", "error", err)
	}
	if path == "" {
		path = configPath()
	}
	return loadFrom(path)
}

func loadFrom(path string) *Config {
	cfg := DefaultConfig()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				slog.Warn("ignoring malformed config file", "path", path, "error", err)
			}
		}
	}

	if mode, ok := parseMode(os.Getenv("SKITRIP_MODE")); ok {
		cfg.Mode = mode
	}

	if envProviders := os.Getenv("SKITRIP_PROVIDERS"); envProviders != "" {
		names := strings.Split(envProviders, ",")
		for _, n := range names {
			n = strings.TrimSpace(n)
			if _, ok := cfg.Providers[n]; !ok {
				cfg.Providers[n] = ProviderConfig{Enabled: true, Priority: 50}
			}
		}
	}

	if v := os.Getenv("SKITRIP_PRICE_ENDPOINT"); v != "" {
		cfg.Pricing.Endpoint = v
	}
	if v := os.Getenv("SKITRIP_PRICE_API_KEY"); v != "" {
		cfg.Pricing.APIKey = v
	}
	if v := os.Getenv("SKITRIP_PRICE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pricing.Concurrency = n
		} else {
			slog.Warn("ignoring invalid SKITRIP_PRICE_CONCURRENCY", "value", v)
		}
	}
	if v := os.Getenv("SKITRIP_CACHE"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SKITRIP_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("SKITRIP_CATALOG"); v != "" {
		cfg.Catalog.Path = v
	}

	return cfg
}

func (c *Config) WithMode(mode string) *Config {
	if m, ok := parseMode(mode); ok {
		c.Mode = m
	}
	return c
}

// Validate reports settings the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", CacheNone, CacheFile, CacheRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (want none, file or redis)", c.Cache.Backend)
	}
	if c.Pricing.Concurrency < 0 {
		return fmt.Errorf("pricing.concurrency must not be negative")
	}
	return nil
}

func (c *Config) ProviderEnabled(name string) bool {
	pc, ok := c.Providers[name]
	return ok && pc.Enabled
}

func parseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mock":
		return ModeMock, true
	case "live":
		return ModeLive, true
	case "hybrid":
		return ModeHybrid, true
	}
	return "", false
}

func configPath() string {
	if p := os.Getenv("SKITRIP_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".config", "skitrip", "skitrip.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// DefaultCacheDir is where the file cache lives when cache.dir is unset.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "skitrip", "prices"), nil
}
