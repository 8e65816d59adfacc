package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the metergate configuration.
type Config struct {
	Ledger   LedgerConfig   `yaml:"ledger"`
	Identity IdentityConfig `yaml:"identity"`
	Account  AccountConfig  `yaml:"account"`
	Settle   SettleConfig   `yaml:"settle"`
	TopUp    TopUpConfig    `yaml:"topup"`
	Charge   ChargeConfig   `yaml:"charge"`
	Audit    AuditConfig    `yaml:"audit"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LedgerConfig holds the subscription ledger API settings.
type LedgerConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// IdentityConfig holds the identity provider API settings.
type IdentityConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// AccountConfig identifies the consumer.
type AccountConfig struct {
	Address        string `yaml:"address"`
	SubscriptionID string `yaml:"subscription_id"`
}

// SettleConfig holds ledger settlement wait settings.
type SettleConfig struct {
	MinDelaySec     int `yaml:"min_delay_sec"`
	PollIntervalSec int `yaml:"poll_interval_sec"`
	MaxWaitSec      int `yaml:"max_wait_sec"`
}

// TopUpConfig bounds the balance top-up loop.
type TopUpConfig struct {
	MinBalance  int `yaml:"min_balance"`
	MaxAttempts int `yaml:"max_attempts"`
}

// ChargeConfig declares the expected charging policy of the bound service.
type ChargeConfig struct {
	Type       string `yaml:"type"` // fixed, dynamic
	MinCredits int    `yaml:"min_credits"`
	MaxCredits int    `yaml:"max_credits"`
}

// AuditConfig holds the optional observation audit trail settings.
type AuditConfig struct {
	Addrs     []string `yaml:"addrs"` // empty disables auditing
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
	Keep      int      `yaml:"keep"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Settle.MinDelaySec <= 0 {
		c.Settle.MinDelaySec = 10
	}
	if c.Settle.PollIntervalSec <= 0 {
		c.Settle.PollIntervalSec = 2
	}
	if c.Settle.MaxWaitSec <= 0 {
		c.Settle.MaxWaitSec = 30
	}
	if c.TopUp.MaxAttempts <= 0 {
		c.TopUp.MaxAttempts = 5
	}
	if c.Charge.Type == "" {
		c.Charge.Type = "fixed"
	}
	if c.Audit.KeyPrefix == "" {
		c.Audit.KeyPrefix = "metergate:"
	}
	if c.Audit.Keep <= 0 {
		c.Audit.Keep = 100
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 30
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("ledger.base_url is required")
	}
	if c.Identity.BaseURL == "" {
		return fmt.Errorf("identity.base_url is required")
	}
	switch c.Charge.Type {
	case "fixed", "dynamic":
		// ok
	default:
		return fmt.Errorf("charge.type must be \"fixed\" or \"dynamic\", got %q", c.Charge.Type)
	}
	if c.Charge.MinCredits < 0 {
		return fmt.Errorf("charge.min_credits must be non-negative, got %d", c.Charge.MinCredits)
	}
	if c.Charge.Type == "dynamic" && c.Charge.MaxCredits < c.Charge.MinCredits {
		return fmt.Errorf("charge.max_credits %d below charge.min_credits %d",
			c.Charge.MaxCredits, c.Charge.MinCredits)
	}
	if c.TopUp.MinBalance < 0 {
		return fmt.Errorf("topup.min_balance must be non-negative, got %d", c.TopUp.MinBalance)
	}
	return nil
}

// SettleMinDelay returns the minimum settle wait as a duration.
func (c *Config) SettleMinDelay() time.Duration {
	return time.Duration(c.Settle.MinDelaySec) * time.Second
}

// SettlePollInterval returns the settle poll interval as a duration.
func (c *Config) SettlePollInterval() time.Duration {
	return time.Duration(c.Settle.PollIntervalSec) * time.Second
}

// SettleMaxWait returns the settle wait bound as a duration.
func (c *Config) SettleMaxWait() time.Duration {
	return time.Duration(c.Settle.MaxWaitSec) * time.Second
}

// RequestTimeout returns the outbound HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
