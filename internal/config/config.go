package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models obralink.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		// JWTSecret is normally injected through OBRALINK_JWT_SECRET rather
		// than written to the file.
		JWTSecret    string `yaml:"jwt_secret"`
		LinkTTLHours int    `yaml:"link_ttl_hours"`
	} `yaml:"auth"`
	Payments struct {
		ApprovalsRequired int      `yaml:"approvals_required"`
		RequiredDocuments []string `yaml:"required_documents"`
	} `yaml:"payments"`
	Notifications Notifications `yaml:"notifications"`
}

type Notifications struct {
	Webhooks  []Webhook `yaml:"webhooks"`
	NATS      NATS      `yaml:"nats"`
	QueueSize int       `yaml:"queue_size"`
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Active reports whether the webhook should receive deliveries. A webhook
// without an explicit enabled flag is active.
func (w Webhook) Active() bool {
	return w.Enabled == nil || *w.Enabled
}

func (w Webhook) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads and validates config from workspace. A missing file yields the
// defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.LinkTTLHours < 0 {
		return fmt.Errorf("config.auth.link_ttl_hours must not be negative")
	}
	if c.Payments.ApprovalsRequired < 1 {
		return fmt.Errorf("config.payments.approvals_required must be at least 1")
	}
	seen := map[string]bool{}
	for _, doc := range c.Payments.RequiredDocuments {
		if strings.TrimSpace(doc) == "" {
			return fmt.Errorf("config.payments.required_documents contains an empty name")
		}
		if seen[doc] {
			return fmt.Errorf("config.payments.required_documents lists %s twice", doc)
		}
		seen[doc] = true
	}
	for i, wh := range c.Notifications.Webhooks {
		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.notifications.webhooks[%d].url must be an http(s) url", i)
		}
		if wh.TimeoutSeconds < 0 {
			return fmt.Errorf("config.notifications.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	if c.Notifications.QueueSize < 0 {
		return fmt.Errorf("config.notifications.queue_size must not be negative")
	}
	return nil
}

// LinkTTL is how long a minted link token stays valid.
func (c *Config) LinkTTL() time.Duration {
	if c.Auth.LinkTTLHours == 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Auth.LinkTTLHours) * time.Hour
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "obralink.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: ":8080"
  base_path: /v1

auth:
  link_ttl_hours: 168

payments:
  approvals_required: 1
  required_documents:
    - f30
    - f30_1
    - libro_remuneraciones

notifications:
  queue_size: 256
  webhooks: []
  nats:
    subject_prefix: obralink.notifications
`
