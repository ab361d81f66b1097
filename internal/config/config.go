package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration required by the settlement processes.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Billing  BillingConfig
	RabbitMQ RabbitMQConfig
	Sweep    SweepConfig
	Payment  PaymentConfig
}

type AppConfig struct {
	Env  string
	Port int
	// PublicURL prefixes invoice links in notifications.
	PublicURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	MaxTokenTTL     time.Duration
}

type BillingConfig struct {
	Currency string
	// Timezone is an IANA name. Billing periods follow its calendar months.
	Timezone string
	DueDays  int
	// NetBasis is "gross" or "without_tax".
	NetBasis       string
	NumberAttempts int
	DefaultMethod  string
}

type RabbitMQConfig struct {
	URL                  string
	NotificationExchange string
	EventsExchange       string
	EventsQueue          string
}

type SweepConfig struct {
	Schedule        string
	OverdueSchedule string
	CloseSchedule   string
	LockTTL         time.Duration
	JobTimeout      time.Duration
}

type PaymentConfig struct {
	GatewayURL    string
	WebhookSecret string
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
	c.App.PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_PUBLIC_URL")), "/")

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
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	{
		n, err := optionalInt("REDIS_DB")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.DB = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.MaxTokenTTL = mustDuration("JWT_MAX_TTL")

	c.Billing.Currency = strings.ToUpper(strings.TrimSpace(os.Getenv("SETTLEMENT_CURRENCY")))
	c.Billing.Timezone = strings.TrimSpace(os.Getenv("SETTLEMENT_TIMEZONE"))
	{
		n, err := optionalInt("SETTLEMENT_DUE_DAYS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.DueDays = n
	}
	c.Billing.NetBasis = strings.TrimSpace(os.Getenv("SETTLEMENT_NET_BASIS"))
	{
		n, err := optionalInt("SETTLEMENT_NUMBER_ATTEMPTS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Billing.NumberAttempts = n
	}
	c.Billing.DefaultMethod = strings.TrimSpace(os.Getenv("SETTLEMENT_DEFAULT_METHOD"))

	c.RabbitMQ.URL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	c.RabbitMQ.NotificationExchange = strings.TrimSpace(os.Getenv("RABBITMQ_NOTIFICATION_EXCHANGE"))
	c.RabbitMQ.EventsExchange = strings.TrimSpace(os.Getenv("RABBITMQ_EVENTS_EXCHANGE"))
	c.RabbitMQ.EventsQueue = strings.TrimSpace(os.Getenv("RABBITMQ_EVENTS_QUEUE"))

	c.Sweep.Schedule = strings.TrimSpace(os.Getenv("SWEEP_SCHEDULE"))
	c.Sweep.OverdueSchedule = strings.TrimSpace(os.Getenv("OVERDUE_SCHEDULE"))
	c.Sweep.CloseSchedule = strings.TrimSpace(os.Getenv("PERIOD_CLOSE_SCHEDULE"))
	c.Sweep.LockTTL = mustDuration("SWEEP_LOCK_TTL")
	c.Sweep.JobTimeout = mustDuration("SWEEP_JOB_TIMEOUT")

	c.Payment.GatewayURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PAYMENT_GATEWAY_URL")), "/")
	c.Payment.WebhookSecret = os.Getenv("PAYMENT_WEBHOOK_SECRET")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every section and fills optional values with defaults.
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
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must not be negative, got %d", c.Redis.DB))
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
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.MaxTokenTTL <= 0 {
		c.Auth.MaxTokenTTL = 24 * time.Hour
	}
	if c.Auth.MaxTokenTTL < c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_MAX_TTL must not be shorter than JWT_ACCESS_TTL"))
	}

	errs = append(errs, c.validateBilling()...)
	errs = append(errs, c.validateMessaging()...)

	return joinErrors(errs)
}

func (c *Config) validateBilling() []error {
	var errs []error

	if c.Billing.Currency == "" {
		c.Billing.Currency = "TRY"
	}
	if len(c.Billing.Currency) != 3 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_CURRENCY must be a 3-letter code, got %q", c.Billing.Currency))
	}
	if c.Billing.Timezone == "" {
		c.Billing.Timezone = "Europe/Istanbul"
	}
	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SETTLEMENT_TIMEZONE is not a known zone: %q", c.Billing.Timezone))
	}
	if c.Billing.DueDays == 0 {
		c.Billing.DueDays = 30
	}
	if c.Billing.DueDays < 0 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_DUE_DAYS must be positive, got %d", c.Billing.DueDays))
	}
	if c.Billing.NetBasis == "" {
		c.Billing.NetBasis = "gross"
	}
	if c.Billing.NetBasis != "gross" && c.Billing.NetBasis != "without_tax" {
		errs = append(errs, fmt.Errorf("SETTLEMENT_NET_BASIS must be gross or without_tax, got %q", c.Billing.NetBasis))
	}
	if c.Billing.NumberAttempts == 0 {
		c.Billing.NumberAttempts = 5
	}
	if c.Billing.NumberAttempts < 0 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_NUMBER_ATTEMPTS must be positive, got %d", c.Billing.NumberAttempts))
	}
	if c.Billing.DefaultMethod == "" {
		c.Billing.DefaultMethod = "card"
	}

	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "*/10 * * * *"
	}
	if c.Sweep.OverdueSchedule == "" {
		c.Sweep.OverdueSchedule = "0 3 * * *"
	}
	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE is not a valid cron expression: %q", c.Sweep.Schedule))
	}
	if _, err := cron.ParseStandard(c.Sweep.OverdueSchedule); err != nil {
		errs = append(errs, fmt.Errorf("OVERDUE_SCHEDULE is not a valid cron expression: %q", c.Sweep.OverdueSchedule))
	}
	if c.Sweep.CloseSchedule == "" {
		c.Sweep.CloseSchedule = "30 2 1 * *"
	}
	if _, err := cron.ParseStandard(c.Sweep.CloseSchedule); err != nil {
		errs = append(errs, fmt.Errorf("PERIOD_CLOSE_SCHEDULE is not a valid cron expression: %q", c.Sweep.CloseSchedule))
	}
	if c.Sweep.LockTTL <= 0 {
		c.Sweep.LockTTL = 5 * time.Minute
	}
	if c.Sweep.JobTimeout <= 0 {
		c.Sweep.JobTimeout = 4 * time.Minute
	}
	if c.Sweep.JobTimeout > c.Sweep.LockTTL {
		errs = append(errs, errors.New("SWEEP_JOB_TIMEOUT must not exceed SWEEP_LOCK_TTL"))
	}
	return errs
}

func (c *Config) validateMessaging() []error {
	var errs []error

	if c.RabbitMQ.URL == "" && c.IsProduction() {
		errs = append(errs, errors.New("RABBITMQ_URL is required in production"))
	}
	if c.RabbitMQ.NotificationExchange == "" {
		c.RabbitMQ.NotificationExchange = "settlement.notifications"
	}
	if c.RabbitMQ.EventsExchange == "" {
		c.RabbitMQ.EventsExchange = "fulfillment.events"
	}
	if c.RabbitMQ.EventsQueue == "" {
		c.RabbitMQ.EventsQueue = "settlement.fulfillment-status"
	}

	if c.Payment.GatewayURL != "" && c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("PAYMENT_WEBHOOK_SECRET is required when PAYMENT_GATEWAY_URL is set"))
	}
	return errs
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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Location resolves Billing.Timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Billing.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
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
