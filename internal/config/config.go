package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the scanforge service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Clients   ClientsConfig   `yaml:"clients"`
	Detection DetectionConfig `yaml:"detection"`
	Store     StoreConfig     `yaml:"store"`
	Polling   PollingConfig   `yaml:"polling"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
	Advice    AdviceConfig    `yaml:"advice"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups the upstream integrations.
type ClientsConfig struct {
	Execution ExecutionClientConfig `yaml:"execution"`
	AI        AIClientConfig        `yaml:"ai"`
}

// ExecutionClientConfig configures access to the scan execution backend.
type ExecutionClientConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	ExecutePath string        `yaml:"executePath"`
	StatusPath  string        `yaml:"statusPath"`
	CancelPath  string        `yaml:"cancelPath"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AIClientConfig configures the optional AI formatting backend.
type AIClientConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// DetectionConfig tunes the heuristic scanner type detector.
type DetectionConfig struct {
	MinConfidence  float64 `yaml:"minConfidence"`
	TermOverlap    float64 `yaml:"termOverlap"`
	MinTermMatches int     `yaml:"minTermMatches"`
	PatternsPath   string  `yaml:"patternsPath"`
}

// StoreConfig selects the registry persistence backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis store backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PollingConfig tunes the scan status poll loop.
type PollingConfig struct {
	Interval         time.Duration `yaml:"interval"`
	MaxInterval      time.Duration `yaml:"maxInterval"`
	WallClockTimeout time.Duration `yaml:"wallClockTimeout"`
}

// CleanupConfig controls the background maintenance schedule.
type CleanupConfig struct {
	Schedule         string        `yaml:"schedule"`
	SessionRetention time.Duration `yaml:"sessionRetention"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AdviceConfig controls rule-pack loading for failure suggestions.
type AdviceConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SCANFORGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8097",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Execution: ExecutionClientConfig{
				BaseURL:     "http://localhost:8765",
				ExecutePath: "/api/scan/execute",
				StatusPath:  "/api/scan/status",
				CancelPath:  "/api/scan/cancel",
				Timeout:     30 * time.Second,
			},
			AI: AIClientConfig{
				Model:   "scanner-large",
				Timeout: 60 * time.Second,
			},
		},
		Detection: DetectionConfig{
			MinConfidence:  0.3,
			TermOverlap:    0.6,
			MinTermMatches: 2,
		},
		Store: StoreConfig{Backend: "memory"},
		Polling: PollingConfig{
			Interval:         2 * time.Second,
			MaxInterval:      30 * time.Second,
			WallClockTimeout: 30 * time.Minute,
		},
		Cleanup: CleanupConfig{
			Schedule:         "@every 5m",
			SessionRetention: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Advice:  AdviceConfig{Path: "configs/advice/default.yaml"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCANFORGE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SCANFORGE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SCANFORGE_EXECUTION_BASE_URL"); v != "" {
		cfg.Clients.Execution.BaseURL = v
	}
	if v := os.Getenv("SCANFORGE_EXECUTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Clients.Execution.Timeout = d
		}
	}
	if v := os.Getenv("SCANFORGE_AI_BASE_URL"); v != "" {
		cfg.Clients.AI.BaseURL = v
	}
	if v := os.Getenv("SCANFORGE_AI_MODEL"); v != "" {
		cfg.Clients.AI.Model = v
	}
	if v := os.Getenv("SCANFORGE_AI_API_KEY"); v != "" {
		cfg.Clients.AI.APIKey = v
	}
	if v := os.Getenv("SCANFORGE_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.MinConfidence = f
		}
	}
	if v := os.Getenv("SCANFORGE_TERM_OVERLAP"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.TermOverlap = f
		}
	}
	if v := os.Getenv("SCANFORGE_PATTERNS_PATH"); v != "" {
		cfg.Detection.PatternsPath = v
	}
	if v := os.Getenv("SCANFORGE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SCANFORGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SCANFORGE_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("SCANFORGE_REDIS_USERNAME"); v != "" {
		cfg.Store.Redis.Username = v
	}
	if v := os.Getenv("SCANFORGE_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("SCANFORGE_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("SCANFORGE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Polling.Interval = d
		}
	}
	if v := os.Getenv("SCANFORGE_POLL_MAX_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Polling.MaxInterval = d
		}
	}
	if v := os.Getenv("SCANFORGE_SCAN_WALL_CLOCK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Polling.WallClockTimeout = d
		}
	}
	if v := os.Getenv("SCANFORGE_CLEANUP_SCHEDULE"); v != "" {
		cfg.Cleanup.Schedule = v
	}
	if v := os.Getenv("SCANFORGE_SESSION_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cleanup.SessionRetention = d
		}
	}
	if v := os.Getenv("SCANFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCANFORGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SCANFORGE_ADVICE_PATH"); v != "" {
		cfg.Advice.Path = v
	}
}
