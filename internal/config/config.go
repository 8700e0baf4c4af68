package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "cafedeck/libs/config"
)

// Config defines dashboard daemon configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"DASHBOARD_HTTP_PORT"`
	} `yaml:"http"`
	Backend struct {
		BaseURL string             `yaml:"baseUrl" env:"DASHBOARD_BACKEND_URL"`
		Timeout libconfig.Duration `yaml:"timeout" env:"DASHBOARD_BACKEND_TIMEOUT"`
	} `yaml:"backend"`
	Events struct {
		URL                  string             `yaml:"url" env:"DASHBOARD_EVENTS_URL"`
		MaxReconnectAttempts int                `yaml:"maxReconnectAttempts" env:"DASHBOARD_EVENTS_MAX_RECONNECT"`
		ReconnectInterval    libconfig.Duration `yaml:"reconnectInterval" env:"DASHBOARD_EVENTS_RECONNECT_INTERVAL"`
		Channels             []string           `yaml:"channels" env:"DASHBOARD_EVENTS_CHANNELS"`
	} `yaml:"events"`
	Countdown struct {
		TickPeriod libconfig.Duration `yaml:"tickPeriod" env:"DASHBOARD_TICK_PERIOD"`
	} `yaml:"countdown"`
	Timezone string `yaml:"timezone" env:"DASHBOARD_TIMEZONE"`
}

// Load reads configuration via the shared helper.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8090"
	cfg.Backend.Timeout = libconfig.Duration(5 * time.Second)
	cfg.Events.MaxReconnectAttempts = 5
	cfg.Events.ReconnectInterval = libconfig.Duration(3 * time.Second)
	cfg.Events.Channels = []string{"stations"}
	cfg.Countdown.TickPeriod = libconfig.Duration(time.Minute)

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return nil, errors.New("config: backend base url required")
	}
	if strings.TrimSpace(cfg.Events.URL) == "" {
		return nil, errors.New("config: events url required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// BackendTimeout returns the REST client timeout.
func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Backend.Timeout.Std()
}

// ReconnectInterval returns the fixed backoff between reconnect attempts.
func (c *Config) ReconnectInterval() time.Duration {
	if c.Events.ReconnectInterval <= 0 {
		return 3 * time.Second
	}
	return c.Events.ReconnectInterval.Std()
}

// TickPeriod returns the countdown recompute period.
func (c *Config) TickPeriod() time.Duration {
	if c.Countdown.TickPeriod <= 0 {
		return time.Minute
	}
	return c.Countdown.TickPeriod.Std()
}

// Location resolves the operator-local timezone used for revenue rollups.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
