package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Upstream struct {
		BaseURL        string `yaml:"base_url"`
		Token          string `yaml:"token"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"upstream"`
	Session struct {
		SigningKey string `yaml:"signing_key"`
		TTLHours   int    `yaml:"ttl_hours"`
	} `yaml:"session"`
	Leads struct {
		PollSeconds           int `yaml:"poll_seconds"`
		DecisionWindowSeconds int `yaml:"decision_window_seconds"`
		MaxBackoffSeconds     int `yaml:"max_backoff_seconds"`
	} `yaml:"leads"`
	Reconciler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
		BatchSize       int `yaml:"batch_size"`
	} `yaml:"reconciler"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	if cfg.Upstream.BaseURL == "" || cfg.Upstream.Token == "" {
		return nil, errors.New("upstream config is incomplete")
	}
	if cfg.Session.SigningKey == "" {
		return nil, errors.New("session.signing_key is required")
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_TOKEN"); v != "" {
		cfg.Upstream.Token = v
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT_SECONDS"); v != "" {
		cfg.Upstream.TimeoutSeconds = atoiOr(cfg.Upstream.TimeoutSeconds, v)
	}
	if v := os.Getenv("SESSION_SIGNING_KEY"); v != "" {
		cfg.Session.SigningKey = v
	}
	if v := os.Getenv("SESSION_TTL_HOURS"); v != "" {
		cfg.Session.TTLHours = atoiOr(cfg.Session.TTLHours, v)
	}
	if v := os.Getenv("LEADS_POLL_SECONDS"); v != "" {
		cfg.Leads.PollSeconds = atoiOr(cfg.Leads.PollSeconds, v)
	}
	if v := os.Getenv("LEADS_DECISION_WINDOW_SECONDS"); v != "" {
		cfg.Leads.DecisionWindowSeconds = atoiOr(cfg.Leads.DecisionWindowSeconds, v)
	}
	if v := os.Getenv("LEADS_MAX_BACKOFF_SECONDS"); v != "" {
		cfg.Leads.MaxBackoffSeconds = atoiOr(cfg.Leads.MaxBackoffSeconds, v)
	}
	if v := os.Getenv("RECONCILER_INTERVAL_SECONDS"); v != "" {
		cfg.Reconciler.IntervalSeconds = atoiOr(cfg.Reconciler.IntervalSeconds, v)
	}
	if v := os.Getenv("RECONCILER_BATCH_SIZE"); v != "" {
		cfg.Reconciler.BatchSize = atoiOr(cfg.Reconciler.BatchSize, v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 10
	}
	if cfg.Session.TTLHours <= 0 {
		cfg.Session.TTLHours = 24
	}
	if cfg.Leads.PollSeconds <= 0 {
		cfg.Leads.PollSeconds = 5
	}
	if cfg.Leads.DecisionWindowSeconds <= 0 {
		cfg.Leads.DecisionWindowSeconds = 60
	}
	if cfg.Leads.MaxBackoffSeconds <= 0 {
		cfg.Leads.MaxBackoffSeconds = 60
	}
	if cfg.Reconciler.IntervalSeconds <= 0 {
		cfg.Reconciler.IntervalSeconds = 30
	}
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 20
	}
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSeconds) * time.Second
}

func (c *Config) LeadPollInterval() time.Duration {
	return time.Duration(c.Leads.PollSeconds) * time.Second
}

func (c *Config) DecisionWindow() time.Duration {
	return time.Duration(c.Leads.DecisionWindowSeconds) * time.Second
}

func (c *Config) LeadMaxBackoff() time.Duration {
	return time.Duration(c.Leads.MaxBackoffSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
