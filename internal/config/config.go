package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Retell  RetellConfig
	SMTP    SMTPConfig
	Billing BillingConfig
	Sync    SyncConfig
}

type AppConfig struct {
	Env  string
	Port int

	// BaseURL is the externally reachable URL of this API,
	// used to build shareable invitation links.
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// RetellConfig configures the voice-AI provider API client.
type RetellConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// BillingConfig carries the credit-pipeline defaults applied when a
// user's credits row is created implicitly on first balance check.
type BillingConfig struct {
	DefaultWarningThreshold  decimal.Decimal
	DefaultCriticalThreshold decimal.Decimal

	// AssumedRatePerMinute converts a balance into estimated remaining
	// call minutes for display.
	AssumedRatePerMinute decimal.Decimal

	// NotifyCooldown suppresses repeat low-balance emails per user.
	NotifyCooldown time.Duration
}

type SyncConfig struct {
	// AgentSyncInterval drives the periodic reconciliation job.
	AgentSyncInterval time.Duration

	// AlertPollInterval drives the low-balance monitor fallback tick.
	AlertPollInterval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Retell.APIKey = os.Getenv("RETELL_API_KEY")
	c.Retell.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("RETELL_BASE_URL")), "/")
	c.Retell.Timeout = mustDuration("RETELL_TIMEOUT")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("SMTP_PORT must be an integer, got %q", v))
		}
		c.SMTP.Port = n
	}
	c.SMTP.Username = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))

	{
		d, err := optDecimal("BILLING_WARNING_THRESHOLD")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.DefaultWarningThreshold = d
	}
	{
		d, err := optDecimal("BILLING_CRITICAL_THRESHOLD")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.DefaultCriticalThreshold = d
	}
	{
		d, err := optDecimal("BILLING_ASSUMED_RATE_PER_MINUTE")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Billing.AssumedRatePerMinute = d
	}
	c.Billing.NotifyCooldown = mustDuration("BILLING_NOTIFY_COOLDOWN")

	c.Sync.AgentSyncInterval = mustDuration("AGENT_SYNC_INTERVAL")
	c.Sync.AlertPollInterval = mustDuration("ALERT_POLL_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.BaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("APP_BASE_URL is required in production"))
		} else {
			c.App.BaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Retell.APIKey == "" {
			errs = append(errs, errors.New("RETELL_API_KEY is required in production"))
		}
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Retell.BaseURL == "" {
		c.Retell.BaseURL = "https://api.retellai.com"
	}
	if c.Retell.Timeout <= 0 {
		c.Retell.Timeout = 15 * time.Second
	}

	if c.SMTP.Port <= 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.From == "" {
		c.SMTP.From = "no-reply@localhost"
	}

	if c.Billing.DefaultWarningThreshold.IsZero() {
		c.Billing.DefaultWarningThreshold = decimal.NewFromInt(10)
	}
	if c.Billing.DefaultCriticalThreshold.IsZero() {
		c.Billing.DefaultCriticalThreshold = decimal.NewFromInt(5)
	}
	if c.Billing.DefaultCriticalThreshold.GreaterThanOrEqual(c.Billing.DefaultWarningThreshold) {
		errs = append(errs, errors.New("BILLING_CRITICAL_THRESHOLD must be lower than BILLING_WARNING_THRESHOLD"))
	}
	if c.Billing.AssumedRatePerMinute.LessThanOrEqual(decimal.Zero) {
		c.Billing.AssumedRatePerMinute = decimal.RequireFromString("0.10")
	}
	if c.Billing.NotifyCooldown <= 0 {
		c.Billing.NotifyCooldown = time.Hour
	}

	if c.Sync.AgentSyncInterval <= 0 {
		c.Sync.AgentSyncInterval = 5 * time.Minute
	}
	if c.Sync.AlertPollInterval <= 0 {
		c.Sync.AlertPollInterval = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) PostgresURL() string {
	// URL form for the native pgx pool. Same secrets caveat as PostgresDSN.
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func optDecimal(key string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
