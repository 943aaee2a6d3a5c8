package taskctl

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the client-side settings file, ~/.config/taskctl/config.yaml
// by default.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	SessionFile string        `yaml:"session_file"`
	Timeout     time.Duration `yaml:"timeout"`
	LogLevel    string        `yaml:"log_level"`

	// AuthEnforced matches the gateway's BACKEND_AUTH_ENFORCED. When false
	// a 401 is reported as an error and the local session is kept.
	AuthEnforced bool `yaml:"auth_enforced"`
}

const (
	defaultBaseURL = "http://localhost:3000"
	defaultTimeout = 15 * time.Second
)

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "taskctl")
	}
	return ".taskctl"
}

func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

func defaultConfig() Config {
	return Config{
		BaseURL:     defaultBaseURL,
		SessionFile: filepath.Join(defaultConfigDir(), "session.json"),
		Timeout:     defaultTimeout,
		LogLevel:    "warn",

		AuthEnforced: true,
	}
}

// LoadConfig reads path over the defaults, then applies TASKCTL_BASE_URL
// and TASKCTL_AUTH_ENFORCED. A missing file is fine; a malformed one is not.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("TASKCTL_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKCTL_AUTH_ENFORCED")); v != "" {
		enforced, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("TASKCTL_AUTH_ENFORCED must be a boolean, got %q", v)
		}
		cfg.AuthEnforced = enforced
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.SessionFile == "" {
		return errors.New("session_file is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return nil
}

// Save writes the config with owner-only permissions.
func (c Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}
