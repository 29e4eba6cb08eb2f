package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/schedule"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend   BackendConfig  `yaml:"backend"`
	Execution string         `yaml:"execution"`
	Live      LiveConfig     `yaml:"live"`
	Roster    RosterConfig   `yaml:"roster"`
	NATS      NATSConfig     `yaml:"nats"`
	Store     StoreConfig    `yaml:"store"`
	Web       WebConfig      `yaml:"web"`
	Telegram  TelegramConfig `yaml:"telegram"`
	Log       LogConfig      `yaml:"log"`
}

type BackendConfig struct {
	URL      string        `yaml:"url"`
	WSPrefix string        `yaml:"ws_prefix"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LiveConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Buffer         int           `yaml:"buffer"`
}

type RosterConfig struct {
	// Policy is "discover" or "legacy".
	Policy         string `yaml:"policy"`
	LayoutCapacity int    `yaml:"layout_capacity"`
}

func (r RosterConfig) Legacy() bool {
	return strings.EqualFold(r.Policy, "legacy")
}

type NATSConfig struct {
	Port int `yaml:"port"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
	// Remind repeats a pending question on this schedule: a cron
	// expression or a duration such as "15m". Empty disables reminders.
	Remind string `yaml:"remind"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			URL:      "http://localhost:8000",
			WSPrefix: "ws",
			Timeout:  10 * time.Second,
		},
		Live: LiveConfig{
			ReconnectDelay: 3 * time.Second,
			Buffer:         256,
		},
		Roster: RosterConfig{
			Policy:         "discover",
			LayoutCapacity: 256,
		},
		NATS: NATSConfig{
			Port: 4222,
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Path returns the config file location.
func Path() string {
	if p := os.Getenv("ORCHESTRA_CONFIG"); p != "" {
		return p
	}
	return "config/orchestra.yaml"
}

func Load() (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(Path())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	if p := cfg.Roster.Policy; p != "" && !strings.EqualFold(p, "discover") && !cfg.Roster.Legacy() {
		return nil, fmt.Errorf("roster.policy: unknown policy %q", p)
	}
	if _, err := schedule.Parse(cfg.Telegram.Remind); err != nil {
		return nil, fmt.Errorf("telegram.remind: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ORCHESTRA_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("ORCHESTRA_EXECUTION"); v != "" {
		cfg.Execution = v
	}
	if v := os.Getenv("ORCHESTRA_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("ORCHESTRA_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("ORCHESTRA_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("ORCHESTRA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ORCHESTRA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
