// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"
)

type RuntimeConfig struct {
	Dev         bool
	Environment string // sandbox | production
}

// IsProduction is the single switch for fail-closed security behavior.
func (r RuntimeConfig) IsProduction() bool { return r.Environment == EnvProduction }

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL           string        `yaml:"url"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	StoreCacheTTL time.Duration `yaml:"store_cache_ttl"`
}

type NATSConfig struct {
	URL           string        `yaml:"url"` // empty disables publishing
	Name          string        `yaml:"name"`
	Stream        string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

type TelegramConfig struct {
	Token    string  `yaml:"token"` // empty disables admin alerts
	AdminIDs []int64 `yaml:"admin_ids"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// ProviderConfig is the credential set of one provider. Each provider uses
// the subset of fields its API needs; the registry decides which are required.
type ProviderConfig struct {
	APIKey            string `yaml:"api_key"`
	APISecret         string `yaml:"api_secret"`
	MerchantID        string `yaml:"merchant_id"`
	SiteID            string `yaml:"site_id"`
	PublishableKey    string `yaml:"publishable_key"`
	ClientID          string `yaml:"client_id"`
	ClientSecret      string `yaml:"client_secret"`
	Token             string `yaml:"token"`
	BaseURL           string `yaml:"base_url"`
	ReturnURL         string `yaml:"return_url"`
	CancelURL         string `yaml:"cancel_url"`
	NotifyURL         string `yaml:"notify_url"`
	TargetEnvironment string `yaml:"target_environment"`
	WebhookSecret     string `yaml:"webhook_secret"`
	// ManualNumber is the merchant number shown in manual payment instructions.
	ManualNumber string `yaml:"manual_number"`
}

type ProvidersConfig struct {
	Timeout     time.Duration  `yaml:"timeout"`
	OrangeMoney ProviderConfig `yaml:"orange_money"`
	MoovMoney   ProviderConfig `yaml:"moov_money"`
	MTN         ProviderConfig `yaml:"mtn_money"`
	Wave        ProviderConfig `yaml:"wave"`
	PayDunya    ProviderConfig `yaml:"paydunya"`
	Stripe      ProviderConfig `yaml:"stripe"`
	PayPal      ProviderConfig `yaml:"paypal"`
	CinetPay    ProviderConfig `yaml:"cinetpay"`
	FedaPay     ProviderConfig `yaml:"fedapay"`
	Paystack    ProviderConfig `yaml:"paystack"`
	SMS         ProviderConfig `yaml:"sms"`
	// StripeFeePercent is the platform application fee on Connect order payments.
	StripeFeePercent float64 `yaml:"stripe_fee_percent"`
}

type VerifyConfig struct {
	Delay      time.Duration `yaml:"delay"`       // async re-check after initiation
	Interval   time.Duration `yaml:"interval"`    // reconciler tick
	StaleAfter time.Duration `yaml:"stale_after"` // reconciler picks open payments older than this
	BatchSize  int           `yaml:"batch_size"`
	Workers    int           `yaml:"workers"`
}

type CodesConfig struct {
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"rate_window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
}

type NotificationConfig struct {
	RelayInterval time.Duration `yaml:"relay_interval"`
	BatchSize     int           `yaml:"batch_size"`
	Language      string        `yaml:"language"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

type Config struct {
	Environment  string             `yaml:"environment"`
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	NATS         NATSConfig         `yaml:"nats"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Auth         AuthConfig         `yaml:"auth"`
	Security     SecurityConfig     `yaml:"security"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Verify       VerifyConfig       `yaml:"verify"`
	Codes        CodesConfig        `yaml:"codes"`
	Notification NotificationConfig `yaml:"notification"`

	Runtime RuntimeConfig `yaml:"-" ignored:"true"`
}

// EnvPrefix namespaces secret overrides, e.g. MYMEDAGA_PROVIDERS_STRIPE_APISECRET.
const EnvPrefix = "MYMEDAGA"

// Load reads the YAML file at path, overlays environment variables (after
// loading .env when present) and applies defaults.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b, dev)
}

func parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// .env is optional; real deployments inject variables directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	cfg.Runtime.Environment = cfg.Environment
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.Environment == "" {
		cfg.Environment = EnvSandbox
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 45 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.StoreCacheTTL <= 0 {
		cfg.Redis.StoreCacheTTL = 5 * time.Minute
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = "mymedaga-payments"
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "PAYMENTS"
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "payments.notification"
	}
	if cfg.NATS.MaxReconnects == 0 {
		cfg.NATS.MaxReconnects = 10
	}
	if cfg.NATS.ReconnectWait <= 0 {
		cfg.NATS.ReconnectWait = 2 * time.Second
	}
	if cfg.Providers.Timeout <= 0 {
		cfg.Providers.Timeout = 30 * time.Second
	}
	if cfg.Providers.StripeFeePercent <= 0 {
		cfg.Providers.StripeFeePercent = 1
	}
	if cfg.Verify.Delay <= 0 {
		cfg.Verify.Delay = 10 * time.Second
	}
	if cfg.Verify.Interval <= 0 {
		cfg.Verify.Interval = time.Minute
	}
	if cfg.Verify.StaleAfter <= 0 {
		cfg.Verify.StaleAfter = 10 * time.Minute
	}
	if cfg.Verify.BatchSize <= 0 {
		cfg.Verify.BatchSize = 100
	}
	if cfg.Verify.Workers <= 0 {
		cfg.Verify.Workers = 4
	}
	if cfg.Codes.RateLimit <= 0 {
		cfg.Codes.RateLimit = 10
	}
	if cfg.Codes.RateWindow <= 0 {
		cfg.Codes.RateWindow = time.Minute
	}
	if cfg.Codes.CleanupInterval <= 0 {
		cfg.Codes.CleanupInterval = 24 * time.Hour
	}
	if cfg.Codes.StatsInterval <= 0 {
		cfg.Codes.StatsInterval = time.Hour
	}
	if cfg.Notification.RelayInterval <= 0 {
		cfg.Notification.RelayInterval = 5 * time.Second
	}
	if cfg.Notification.BatchSize <= 0 {
		cfg.Notification.BatchSize = 50
	}
	if cfg.Notification.Language == "" {
		cfg.Notification.Language = "fr"
	}
	if cfg.Notification.MaxAttempts <= 0 {
		cfg.Notification.MaxAttempts = 10
	}
}

func validate(cfg *Config) error {
	if cfg.Environment != EnvSandbox && cfg.Environment != EnvProduction {
		return fmt.Errorf("environment must be %q or %q, got %q", EnvSandbox, EnvProduction, cfg.Environment)
	}
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Environment == EnvProduction && len(cfg.Security.EncryptionKey) != 32 {
		return errors.New("security.encryption_key must be 32 bytes in production")
	}
	return nil
}
