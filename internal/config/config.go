package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts Go duration strings ("3s", "500ms") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config models euprava.yml.
type Config struct {
	Listen string `yaml:"listen"`
	Auth   struct {
		JWTSecret string   `yaml:"jwt_secret"`
		TokenTTL  Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Health struct {
		// ResolverURL points CertificateLinker at a remote health service.
		// Empty means the local certificate store backs verification.
		ResolverURL   string   `yaml:"resolver_url"`
		ResolverToken string   `yaml:"resolver_token"`
		VerifyTimeout Duration `yaml:"verify_timeout"`
	} `yaml:"health"`
}

// Default returns the single-binary development configuration.
func Default() *Config {
	var cfg Config
	cfg.Listen = ":8080"
	cfg.Auth.TokenTTL = Duration(24 * time.Hour)
	cfg.Database.Path = "data/euprava.db"
	cfg.Health.VerifyTimeout = Duration(3 * time.Second)
	return &cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config.listen is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config.auth.token_ttl must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config.database.path is required")
	}
	if c.Health.VerifyTimeout <= 0 {
		return fmt.Errorf("config.health.verify_timeout must be positive")
	}
	return nil
}

// FromYAML parses and validates config from raw YAML bytes layered over the
// defaults.
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

// LoadOptional returns the defaults when path does not exist. The secret
// still has to arrive by flag or environment in that case.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}
