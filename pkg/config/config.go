package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Gateway      GatewayConfig
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HUNGERDASH_APP_ENV" required:"true"`
	Port         string `envconfig:"HUNGERDASH_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HUNGERDASH_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HUNGERDASH_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HUNGERDASH_DB_DSN"`
	Driver string `envconfig:"HUNGERDASH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HUNGERDASH_DB_HOST"`
	LegacyPort     int    `envconfig:"HUNGERDASH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HUNGERDASH_DB_USER"`
	LegacyPassword string `envconfig:"HUNGERDASH_DB_PASSWORD"`
	LegacyName     string `envconfig:"HUNGERDASH_DB_NAME"`
	LegacySSLMode  string `envconfig:"HUNGERDASH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HUNGERDASH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HUNGERDASH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HUNGERDASH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HUNGERDASH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HUNGERDASH_REDIS_URL" required:"true"`
	Password     string        `envconfig:"HUNGERDASH_REDIS_PASSWORD"`
	DB           int           `envconfig:"HUNGERDASH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HUNGERDASH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HUNGERDASH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HUNGERDASH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HUNGERDASH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HUNGERDASH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"HUNGERDASH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"HUNGERDASH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"HUNGERDASH_JWT_EXPIRATION_MINUTES" default:"60"`
}

// GatewayConfig holds the card gateway credentials. The process owns exactly
// one of these, created at startup and passed by reference.
type GatewayConfig struct {
	AccessToken   string        `envconfig:"HUNGERDASH_GATEWAY_ACCESS_TOKEN" required:"true"`
	Env           string        `envconfig:"HUNGERDASH_GATEWAY_ENV" default:"sandbox"`
	LocationID    string        `envconfig:"HUNGERDASH_GATEWAY_LOCATION_ID" required:"true"`
	WebhookSecret string        `envconfig:"HUNGERDASH_GATEWAY_WEBHOOK_SECRET" required:"true"`
	CallTimeout   time.Duration `envconfig:"HUNGERDASH_GATEWAY_CALL_TIMEOUT" default:"30s"`

	SuccessURL string `envconfig:"HUNGERDASH_GATEWAY_SUCCESS_URL"`
	CancelURL  string `envconfig:"HUNGERDASH_GATEWAY_CANCEL_URL"`
	FailureURL string `envconfig:"HUNGERDASH_GATEWAY_FAILURE_URL"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// CheckoutConfig tunes the pricing and cart behavior that is policy, not data.
type CheckoutConfig struct {
	Currency               string        `envconfig:"HUNGERDASH_CHECKOUT_CURRENCY" default:"ZAR"`
	FreeDeliveryThreshold  float64       `envconfig:"HUNGERDASH_CHECKOUT_FREE_DELIVERY_THRESHOLD" default:"500"`
	DefaultDeliveryFee     float64       `envconfig:"HUNGERDASH_CHECKOUT_DEFAULT_DELIVERY_FEE" default:"30"`
	CartAbandonAfter       time.Duration `envconfig:"HUNGERDASH_CHECKOUT_CART_ABANDON_AFTER" default:"24h"`
	MaxTip                 float64       `envconfig:"HUNGERDASH_CHECKOUT_MAX_TIP" default:"1000"`
	OrderNumberPrefix      string        `envconfig:"HUNGERDASH_CHECKOUT_ORDER_NUMBER_PREFIX" default:"HD"`
	PaymentNumberPrefix    string        `envconfig:"HUNGERDASH_CHECKOUT_PAYMENT_NUMBER_PREFIX" default:"PAY"`
	CheckoutIdempotencyTTL time.Duration `envconfig:"HUNGERDASH_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

// FreeDeliveryThresholdAmount returns the threshold as exact decimal money.
func (c CheckoutConfig) FreeDeliveryThresholdAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.FreeDeliveryThreshold)
}

// DefaultDeliveryFeeAmount returns the fallback fee as exact decimal money.
func (c CheckoutConfig) DefaultDeliveryFeeAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultDeliveryFee)
}

// MaxTipAmount returns the tip ceiling as exact decimal money.
func (c CheckoutConfig) MaxTipAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxTip)
}

// RateLimitConfig throttles authenticated API traffic per caller.
type RateLimitConfig struct {
	APILimit  int64         `envconfig:"HUNGERDASH_RATE_LIMIT_API_LIMIT" default:"120"`
	APIWindow time.Duration `envconfig:"HUNGERDASH_RATE_LIMIT_API_WINDOW" default:"1m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HUNGERDASH_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
