package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
)

// Config holds all configuration for the service.
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	Port   string `envconfig:"PORT" default:"8000"`

	DB    DBConfig
	Redis RedisConfig

	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"60m"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`
	CookieDomain  string        `envconfig:"COOKIE_DOMAIN"`
	AllowedOrigin []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	Payment    PaymentConfig
	Shiprocket ShiprocketConfig
	Admin      AdminConfig
	AWS        AWSConfig
}

type DBConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"postgres"`
	Host            string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port            string        `envconfig:"POSTGRES_PORT" default:"5432"`
	User            string        `envconfig:"POSTGRES_USER"`
	Password        string        `envconfig:"POSTGRES_PASSWORD"`
	Name            string        `envconfig:"POSTGRES_DB" default:"orderms"`
	SSLMode         string        `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	TimeZone        string        `envconfig:"POSTGRES_TIMEZONE" default:"Asia/Kolkata"`
	MySQLAddr       string        `envconfig:"MYSQL_ADDR" default:"localhost:3306"`
	MySQLUser       string        `envconfig:"MYSQL_USER"`
	MySQLPassword   string        `envconfig:"MYSQL_PASSWORD"`
	MySQLDB         string        `envconfig:"MYSQL_DB" default:"orderms"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"15"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnectRetries  int           `envconfig:"DB_CONNECT_RETRIES" default:"5"`
	ConnectBackoff  time.Duration `envconfig:"DB_CONNECT_BACKOFF" default:"2s"`
}

type RedisConfig struct {
	URL      string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"10m"`
	LockTTL  time.Duration `envconfig:"FULFILLMENT_LOCK_TTL" default:"15m"`
}

type PaymentConfig struct {
	Gateway              string `envconfig:"PAYMENT_GATEWAY" default:"razorpay"`
	Currency             string `envconfig:"PAYMENT_CURRENCY" default:"INR"`
	RazorpayKeyID        string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret    string `envconfig:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL      string `envconfig:"RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `envconfig:"STRIPE_PUBLISHABLE_KEY"`
}

type ShiprocketConfig struct {
	BaseURL        string  `envconfig:"SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in"`
	Email          string  `envconfig:"SHIPROCKET_EMAIL"`
	Password       string  `envconfig:"SHIPROCKET_PASSWORD"`
	PickupLocation string  `envconfig:"SHIPROCKET_PICKUP_LOCATION" default:"Primary"`
	CourierID      int     `envconfig:"SHIPROCKET_COURIER_ID" default:"0"`
	ParcelLength   float64 `envconfig:"PARCEL_LENGTH_CM" default:"10"`
	ParcelBreadth  float64 `envconfig:"PARCEL_BREADTH_CM" default:"10"`
	ParcelHeight   float64 `envconfig:"PARCEL_HEIGHT_CM" default:"10"`
	ParcelWeight   float64 `envconfig:"PARCEL_WEIGHT_KG" default:"0.5"`
}

type AdminConfig struct {
	DefaultEmail    string `envconfig:"ADMIN_DEFAULT_EMAIL" default:"admin@orderms.local"`
	DefaultPassword string `envconfig:"ADMIN_DEFAULT_PASSWORD"`
}

type AWSConfig struct {
	UseSecrets          bool   `envconfig:"AWS_USE_SECRETS" default:"false"`
	OrderSNSTopicARN    string `envconfig:"ORDER_SNS_TOPIC_ARN"`
	ProductImageBucket  string `envconfig:"PRODUCT_IMAGE_BUCKET"`
	CloudWatchEnabled   bool   `envconfig:"CLOUDWATCH_ENABLED" default:"false"`
	CloudWatchNamespace string `envconfig:"CLOUDWATCH_NAMESPACE" default:"OrderMS"`
	CloudWatchLogGroup  string `envconfig:"CLOUDWATCH_LOG_GROUP" default:"/orderms/services"`
}

// Enabled reports whether any AWS integration needs an SDK config.
func (a AWSConfig) Enabled() bool {
	return a.UseSecrets || a.OrderSNSTopicARN != "" || a.ProductImageBucket != "" || a.CloudWatchEnabled
}

// Load reads configuration from .env, the environment, and optionally
// Secrets Manager, then validates it.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.AWS.UseSecrets {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv processes environment variables into a Config without validation.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

// Secret names read when AWS_USE_SECRETS=true.
const (
	SecretDBCredentials = "orderms/DB_CREDENTIALS"
	SecretPayment       = "orderms/PAYMENT_KEYS"
	SecretShiprocket    = "orderms/SHIPROCKET_PASSWORD"
	SecretJWT           = "orderms/JWT_SECRET"
)

// ApplySecrets overrides credentials with values found in the secret store.
// Missing secrets leave the environment values in place; any other failure is
// returned.
func (c *Config) ApplySecrets(ctx context.Context, sm aws_pkg.SecretGetter) error {
	db, err := aws_pkg.GetSecretMap(ctx, sm, SecretDBCredentials)
	if err = skipMissing(err); err != nil {
		return err
	}
	override(&c.DB.User, db["POSTGRES_USER"])
	override(&c.DB.Password, db["POSTGRES_PASSWORD"])
	override(&c.DB.Name, db["POSTGRES_DB"])
	override(&c.DB.Host, db["POSTGRES_HOST"])
	override(&c.DB.Port, db["POSTGRES_PORT"])
	override(&c.DB.MySQLUser, db["MYSQL_USER"])
	override(&c.DB.MySQLPassword, db["MYSQL_PASSWORD"])

	pay, err := aws_pkg.GetSecretMap(ctx, sm, SecretPayment)
	if err = skipMissing(err); err != nil {
		return err
	}
	override(&c.Payment.RazorpayKeyID, pay["RAZORPAY_KEY_ID"])
	override(&c.Payment.RazorpayKeySecret, pay["RAZORPAY_KEY_SECRET"])
	override(&c.Payment.StripeSecretKey, pay["STRIPE_SECRET_KEY"])

	for name, dst := range map[string]*string{
		SecretShiprocket: &c.Shiprocket.Password,
		SecretJWT:        &c.JWTSecret,
	} {
		v, err := sm.GetSecret(ctx, name)
		if err = skipMissing(err); err != nil {
			return err
		}
		override(dst, v)
	}
	return nil
}

func skipMissing(err error) error {
	if errors.Is(err, aws_pkg.ErrSecretNotFound) {
		return nil
	}
	return err
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Validate reports the first missing or inconsistent setting.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.User == "" || c.DB.Password == "" || c.DB.Name == "" || c.DB.Host == "" {
			return fmt.Errorf("database config incomplete")
		}
	case "mysql":
		if c.DB.MySQLUser == "" || c.DB.MySQLDB == "" || c.DB.MySQLAddr == "" {
			return fmt.Errorf("database config incomplete")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}

	switch c.Payment.Gateway {
	case "razorpay":
		if c.Payment.RazorpayKeyID == "" || c.Payment.RazorpayKeySecret == "" {
			return fmt.Errorf("razorpay keys are required")
		}
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_GATEWAY %q", c.Payment.Gateway)
	}
	return nil
}
