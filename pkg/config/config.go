package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/signing"
)

const (
	DefaultConfigPath = "/etc/licensing"
	ConfigFileName    = "licensing.yml"

	// MaxTokenLeewaySeconds is the hard ceiling on clock skew tolerance.
	MaxTokenLeewaySeconds = 60

	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config holds the licensing server settings.
type Config struct {
	// SigningAlgorithm is the algorithm new tokens are signed with
	SigningAlgorithm string `yaml:"signing_algorithm" json:"signing_algorithm"`

	// SigningKeySize is the modulus size for generated keys
	SigningKeySize int `yaml:"signing_key_size" json:"signing_key_size"`

	// TokenIssuer is the iss claim of issued tokens
	TokenIssuer string `yaml:"token_issuer" json:"token_issuer"`

	// TokenLeewaySeconds is the tolerated clock skew on expiry
	TokenLeewaySeconds int `yaml:"token_leeway_seconds" json:"token_leeway_seconds"`

	OfflineGracePeriodHours int `yaml:"offline_grace_period_hours" json:"offline_grace_period_hours"`

	// ExpiryWarningDays is how far ahead the sweep flags expiring licenses
	ExpiryWarningDays int `yaml:"expiry_warning_days" json:"expiry_warning_days"`

	AuditRetentionDays int `yaml:"audit_retention_days" json:"audit_retention_days"`

	// AlertRecipients receive High and Critical audit alerts by mail
	AlertRecipients []string `yaml:"alert_recipients" json:"alert_recipients"`

	AlertWebhookURL string `yaml:"alert_webhook_url" json:"alert_webhook_url"`

	SMTPAddress string `yaml:"smtp_address" json:"smtp_address"`

	SMTPFrom string `yaml:"smtp_from" json:"smtp_from"`

	// RedisURL enables the shared revocation cache when set
	RedisURL string `yaml:"redis_url" json:"redis_url"`

	StoreBackend string `yaml:"store_backend" json:"store_backend"`

	// ValidateRateLimit is the sustained requests per second on /tokens/validate
	ValidateRateLimit float64 `yaml:"validate_rate_limit" json:"validate_rate_limit"`

	ValidateRateBurst int `yaml:"validate_rate_burst" json:"validate_rate_burst"`

	NotificationTimeoutSeconds int `yaml:"notification_timeout_seconds" json:"notification_timeout_seconds"`

	// StorageTimeoutSeconds bounds every call to the database
	StorageTimeoutSeconds int `yaml:"storage_timeout_seconds" json:"storage_timeout_seconds"`

	// sources tracks where each value came from
	sources map[string]string

	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func newDefault() *Config {
	return &Config{
		SigningAlgorithm:           string(signing.RS256),
		SigningKeySize:             signing.MinKeySize,
		TokenIssuer:                "licensing",
		TokenLeewaySeconds:         30,
		OfflineGracePeriodHours:    72,
		ExpiryWarningDays:          30,
		AuditRetentionDays:         90,
		AlertRecipients:            []string{},
		StoreBackend:               StoreBackendPostgres,
		ValidateRateLimit:          50,
		ValidateRateBurst:          100,
		NotificationTimeoutSeconds: 5,
		StorageTimeoutSeconds:      5,
		sources:                    make(map[string]string),
	}
}

// Default returns the built-in configuration without reading any source.
func Default() *Config {
	c := newDefault()
	for _, name := range attributeNames() {
		c.sources[name] = "default"
	}
	return c
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	configPath := os.Getenv("LICENSING_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	return LoadFile(filepath.Join(configPath, ConfigFileName))
}

// LoadFile is Load with an explicit file path. A missing file is not an
// error.
func LoadFile(path string) (*Config, error) {
	config := Default()
	config.configFilePath = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		config.applyFileConfig(&fileConfig)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := config.applyEnvConfig(); err != nil {
		return nil, err
	}
	return config, nil
}

func attributeNames() []string {
	return []string{
		"signing_algorithm", "signing_key_size", "token_issuer",
		"token_leeway_seconds", "offline_grace_period_hours",
		"expiry_warning_days", "audit_retention_days", "alert_recipients",
		"alert_webhook_url", "smtp_address", "smtp_from", "redis_url",
		"store_backend", "validate_rate_limit", "validate_rate_burst",
		"notification_timeout_seconds", "storage_timeout_seconds",
	}
}

func (c *Config) applyFileConfig(file *Config) {
	setString := func(name string, dst *string, v string) {
		if v != "" {
			*dst = v
			c.sources[name] = "file"
		}
	}
	setInt := func(name string, dst *int, v int) {
		if v != 0 {
			*dst = v
			c.sources[name] = "file"
		}
	}

	setString("signing_algorithm", &c.SigningAlgorithm, file.SigningAlgorithm)
	setInt("signing_key_size", &c.SigningKeySize, file.SigningKeySize)
	setString("token_issuer", &c.TokenIssuer, file.TokenIssuer)
	setInt("token_leeway_seconds", &c.TokenLeewaySeconds, file.TokenLeewaySeconds)
	setInt("offline_grace_period_hours", &c.OfflineGracePeriodHours, file.OfflineGracePeriodHours)
	setInt("expiry_warning_days", &c.ExpiryWarningDays, file.ExpiryWarningDays)
	setInt("audit_retention_days", &c.AuditRetentionDays, file.AuditRetentionDays)
	if len(file.AlertRecipients) > 0 {
		c.AlertRecipients = file.AlertRecipients
		c.sources["alert_recipients"] = "file"
	}
	setString("alert_webhook_url", &c.AlertWebhookURL, file.AlertWebhookURL)
	setString("smtp_address", &c.SMTPAddress, file.SMTPAddress)
	setString("smtp_from", &c.SMTPFrom, file.SMTPFrom)
	setString("redis_url", &c.RedisURL, file.RedisURL)
	setString("store_backend", &c.StoreBackend, file.StoreBackend)
	if file.ValidateRateLimit != 0 {
		c.ValidateRateLimit = file.ValidateRateLimit
		c.sources["validate_rate_limit"] = "file"
	}
	setInt("validate_rate_burst", &c.ValidateRateBurst, file.ValidateRateBurst)
	setInt("notification_timeout_seconds", &c.NotificationTimeoutSeconds, file.NotificationTimeoutSeconds)
	setInt("storage_timeout_seconds", &c.StorageTimeoutSeconds, file.StorageTimeoutSeconds)
}

func (c *Config) applyEnvConfig() error {
	setString := func(name string, dst *string) {
		if val := os.Getenv(envName(name)); val != "" {
			*dst = val
			c.sources[name] = "environment"
		}
	}
	var firstErr error
	setInt := func(name string, dst *int) {
		val := os.Getenv(envName(name))
		if val == "" {
			return
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %q is not an integer", envName(name), val)
			}
			return
		}
		*dst = i
		c.sources[name] = "environment"
	}

	setString("signing_algorithm", &c.SigningAlgorithm)
	setInt("signing_key_size", &c.SigningKeySize)
	setString("token_issuer", &c.TokenIssuer)
	setInt("token_leeway_seconds", &c.TokenLeewaySeconds)
	setInt("offline_grace_period_hours", &c.OfflineGracePeriodHours)
	setInt("expiry_warning_days", &c.ExpiryWarningDays)
	setInt("audit_retention_days", &c.AuditRetentionDays)
	if val := os.Getenv(envName("alert_recipients")); val != "" {
		c.AlertRecipients = splitAndTrim(val)
		c.sources["alert_recipients"] = "environment"
	}
	setString("alert_webhook_url", &c.AlertWebhookURL)
	setString("smtp_address", &c.SMTPAddress)
	setString("smtp_from", &c.SMTPFrom)
	setString("redis_url", &c.RedisURL)
	setString("store_backend", &c.StoreBackend)
	if val := os.Getenv(envName("validate_rate_limit")); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %q is not a number", envName("validate_rate_limit"), val)
		} else if err == nil {
			c.ValidateRateLimit = f
			c.sources["validate_rate_limit"] = "environment"
		}
	}
	setInt("validate_rate_burst", &c.ValidateRateBurst)
	setInt("notification_timeout_seconds", &c.NotificationTimeoutSeconds)
	setInt("storage_timeout_seconds", &c.StorageTimeoutSeconds)
	return firstErr
}

func envName(attribute string) string {
	return "LICENSING_" + strings.ToUpper(attribute)
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

func (c *Config) Algorithm() signing.Algorithm {
	return signing.Algorithm(strings.ToUpper(c.SigningAlgorithm))
}

func (c *Config) TokenLeeway() time.Duration {
	return time.Duration(c.TokenLeewaySeconds) * time.Second
}

func (c *Config) OfflineGracePeriod() time.Duration {
	return time.Duration(c.OfflineGracePeriodHours) * time.Hour
}

func (c *Config) ExpiryWarning() time.Duration {
	return time.Duration(c.ExpiryWarningDays) * 24 * time.Hour
}

func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.NotificationTimeoutSeconds) * time.Second
}

func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutSeconds) * time.Second
}

var validate = validator.New()

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := signing.ParseAlgorithm(c.SigningAlgorithm); err != nil {
		return fmt.Errorf("invalid signing_algorithm: %s", c.SigningAlgorithm)
	}
	if c.SigningKeySize < signing.MinKeySize {
		return fmt.Errorf("signing_key_size must be at least %d", signing.MinKeySize)
	}
	if c.TokenLeewaySeconds < 0 || c.TokenLeewaySeconds > MaxTokenLeewaySeconds {
		return fmt.Errorf("token_leeway_seconds must be between 0 and %d", MaxTokenLeewaySeconds)
	}
	if c.OfflineGracePeriodHours <= 0 {
		return fmt.Errorf("offline_grace_period_hours must be positive")
	}
	if c.ExpiryWarningDays < 0 {
		return fmt.Errorf("expiry_warning_days must not be negative")
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("audit_retention_days must be positive")
	}
	for _, r := range c.AlertRecipients {
		if err := validate.Var(r, "email"); err != nil {
			return fmt.Errorf("invalid alert_recipients value: %s", r)
		}
	}
	if c.SMTPFrom != "" {
		if err := validate.Var(c.SMTPFrom, "email"); err != nil {
			return fmt.Errorf("invalid smtp_from: %s", c.SMTPFrom)
		}
	}
	if c.AlertWebhookURL != "" {
		u, err := url.Parse(c.AlertWebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid alert_webhook_url: %s", c.AlertWebhookURL)
		}
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("invalid store_backend: %s", c.StoreBackend)
	}
	if c.ValidateRateLimit <= 0 || c.ValidateRateBurst <= 0 {
		return fmt.Errorf("validate_rate_limit and validate_rate_burst must be positive")
	}
	if c.NotificationTimeoutSeconds <= 0 {
		return fmt.Errorf("notification_timeout_seconds must be positive")
	}
	if c.StorageTimeoutSeconds <= 0 {
		return fmt.Errorf("storage_timeout_seconds must be positive")
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	attr := func(name, value string) Attribute {
		return Attribute{Name: name, Value: value, Source: c.Source(name)}
	}
	return []Attribute{
		attr("signing_algorithm", c.SigningAlgorithm),
		attr("signing_key_size", strconv.Itoa(c.SigningKeySize)),
		attr("token_issuer", c.TokenIssuer),
		attr("token_leeway_seconds", strconv.Itoa(c.TokenLeewaySeconds)),
		attr("offline_grace_period_hours", strconv.Itoa(c.OfflineGracePeriodHours)),
		attr("expiry_warning_days", strconv.Itoa(c.ExpiryWarningDays)),
		attr("audit_retention_days", strconv.Itoa(c.AuditRetentionDays)),
		attr("alert_recipients", strings.Join(c.AlertRecipients, ",")),
		attr("alert_webhook_url", c.AlertWebhookURL),
		attr("smtp_address", c.SMTPAddress),
		attr("smtp_from", c.SMTPFrom),
		attr("redis_url", redact(c.RedisURL)),
		attr("store_backend", c.StoreBackend),
		attr("validate_rate_limit", strconv.FormatFloat(c.ValidateRateLimit, 'f', -1, 64)),
		attr("validate_rate_burst", strconv.Itoa(c.ValidateRateBurst)),
		attr("notification_timeout_seconds", strconv.Itoa(c.NotificationTimeoutSeconds)),
		attr("storage_timeout_seconds", strconv.Itoa(c.StorageTimeoutSeconds)),
	}
}

// redact hides the password of a URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-40s %-30s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
