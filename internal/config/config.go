package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
	Env       string `env:"APP_ENV" envDefault:"development"`

	DB       DBConfig       `envPrefix:"DB_"`
	POS      POSConfig      `envPrefix:"POS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	RabbitMQ RabbitMQConfig `envPrefix:"RABBITMQ_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Outbox   OutboxConfig   `envPrefix:"OUTBOX_"`
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"pos"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	// NotifyChannel is the LISTEN/NOTIFY channel the change triggers publish on
	NotifyChannel string `env:"NOTIFY_CHANNEL" envDefault:"pos_changes"`
}

// POSConfig holds the business settings of the point of sale
type POSConfig struct {
	// OrderTaxRate is the configurable rate used when an order is created without an explicit one
	OrderTaxRate decimal.Decimal `env:"ORDER_TAX_RATE" envDefault:"0.08"`
	// CheckoutTaxRate is the flat rate applied by the checkout dialog
	CheckoutTaxRate   decimal.Decimal `env:"CHECKOUT_TAX_RATE" envDefault:"0.10"`
	OrderNumberPrefix string          `env:"ORDER_NUMBER_PREFIX" envDefault:"NF"`
	Timezone          string          `env:"TIMEZONE" envDefault:"Asia/Jakarta"`
	// StoreTimeout bounds every persistence call so a hung request surfaces as an error
	StoreTimeout       time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TransitionDebounce time.Duration `env:"TRANSITION_DEBOUNCE" envDefault:"300ms"`
	KitchenWarnAfter   time.Duration `env:"KITCHEN_WARN_AFTER" envDefault:"5m"`
	KitchenCritAfter   time.Duration `env:"KITCHEN_CRITICAL_AFTER" envDefault:"10m"`
	KitchenTick        time.Duration `env:"KITCHEN_TICK" envDefault:"1s"`
	OrderWindow        time.Duration `env:"ORDER_WINDOW" envDefault:"24h"`
	OrderFetchLimit    int           `env:"ORDER_FETCH_LIMIT" envDefault:"200"`
}

type KafkaConfig struct {
	Brokers       []string `env:"BROKERS" envSeparator:","`
	Topic         string   `env:"TOPIC" envDefault:"pos.events"`
	ConsumerGroup string   `env:"CONSUMER_GROUP" envDefault:"pos-terminals"`
	ClientID      string   `env:"CLIENT_ID" envDefault:"restaurant-pos"`
	// BreakerThreshold consecutive publish failures open the breaker for BreakerReset
	BreakerThreshold int           `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerReset     time.Duration `env:"BREAKER_RESET" envDefault:"30s"`
}

type RabbitMQConfig struct {
	URL      string `env:"URL"`
	Exchange string `env:"EXCHANGE" envDefault:"pos_notifications"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type AuthConfig struct {
	// JWTSecret verifies operator tokens issued by the external auth service
	JWTSecret string `env:"JWT_SECRET"`
}

type HTTPConfig struct {
	CORSOrigins       []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"50ms"`
	RateLimitBurst    int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	TrustForwardedFor bool          `env:"TRUST_FORWARDED_FOR" envDefault:"false"`
}

type OutboxConfig struct {
	PollingInterval time.Duration `env:"POLLING_INTERVAL" envDefault:"2s"`
	BatchSize       int           `env:"BATCH_SIZE" envDefault:"20"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	DLQInterval     time.Duration `env:"DLQ_INTERVAL" envDefault:"30s"`
}

// Load reads an optional .env file (ENV_FILE, default ".env") and parses the environment
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.POS.OrderTaxRate.IsNegative() || c.POS.CheckoutTaxRate.IsNegative() {
		return fmt.Errorf("tax rates must not be negative")
	}
	if c.POS.KitchenCritAfter <= c.POS.KitchenWarnAfter {
		return fmt.Errorf("POS_KITCHEN_CRITICAL_AFTER must be greater than POS_KITCHEN_WARN_AFTER")
	}
	if _, err := time.LoadLocation(c.POS.Timezone); err != nil {
		return fmt.Errorf("invalid POS_TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the business timezone used for daily order numbers
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.POS.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
