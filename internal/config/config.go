package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"io/fs"
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMySQL = "mysql"
	DriverMongo = "mongo"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	StoreDriver string // "mysql" or "mongo"
	DBUser      string // database username
	DBPass      string // database password (optional)
	DBHost      string // database host address
	DBPort      string // database port number
	DBName      string // database name
	MongoURI    string // mongodb:// connection string
	MongoDB     string // mongo database name

	JWTSecret           string // secret used to sign JWTs
	AccessTTLMin        int    // access token time‑to‑live in minutes
	BcryptCost          int    // bcrypt cost for password hashing
	AdminEmail          string // email of the seeded default admin
	AdminPassword       string // password of the seeded default admin
	AllowRoleSelfAssign bool   // honor a client-supplied role at registration

	StripeSecretKey    string
	PaymentCurrency    string        // ISO currency for line items, lower-case
	CheckoutSuccessURL string        // must contain {CHECKOUT_SESSION_ID}
	CheckoutCancelURL  string
	PaymentTimeout     time.Duration // bound on each processor call
	BreakerMaxFailures int           // consecutive failures before the breaker opens
	BreakerOpenTimeout time.Duration // how long the breaker stays open

	IdempotencyWindow time.Duration // 0 disables checkout de-duplication

	RabbitURL string // AMQP broker for checkout audit events; empty disables publishing

	LogLevel  string // debug|info|warn|error
	LogFormat string // json|text
}

// AccessTTL returns the token lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// Load reads an optional .env file and then configuration values from
// the environment.  Missing required variables are collected and
// reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	l := &loader{}
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "3000"),

		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		DBPass:      os.Getenv("DB_PASS"), // database password (empty allowed)
		MongoDB:     envStr("MONGO_DB", "tienda"),

		JWTSecret:           l.must("JWT_SECRET"),
		AccessTTLMin:        envInt("ACCESS_TOKEN_TTL_MIN", 24*60),
		BcryptCost:          envInt("BCRYPT_COST", 10),
		AdminEmail:          envStr("ADMIN_EMAIL", "admin@tienda.com"),
		AdminPassword:       envStr("ADMIN_PASSWORD", "admin123"),
		AllowRoleSelfAssign: envBool("AUTH_ALLOW_ROLE_SELF_ASSIGN", false),

		StripeSecretKey:    l.must("STRIPE_SECRET_KEY"),
		PaymentCurrency:    strings.ToLower(envStr("PAYMENT_CURRENCY", "usd")),
		CheckoutSuccessURL: envStr("CHECKOUT_SUCCESS_URL", "http://localhost:5173/success?status=success&session_id={CHECKOUT_SESSION_ID}"),
		CheckoutCancelURL:  envStr("CHECKOUT_CANCEL_URL", "http://localhost:5173/cancel?status=cancel"),
		PaymentTimeout:     envDur("PAYMENT_TIMEOUT", 10*time.Second),
		BreakerMaxFailures: envInt("PAYMENT_BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: envDur("PAYMENT_BREAKER_OPEN_TIMEOUT", 30*time.Second),

		IdempotencyWindow: envDur("CHECKOUT_IDEMPOTENCY_WINDOW", 0),

		RabbitURL: firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = l.must("DB_USER")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case DriverMongo:
		cfg.MongoURI = firstNonEmpty(os.Getenv("MONGO_URI"), os.Getenv("MONGODB_URI"))
		if cfg.MongoURI == "" {
			l.missing = append(l.missing, "MONGO_URI")
		}
	default:
		l.invalid = append(l.invalid, fmt.Sprintf("STORE_DRIVER=%q", cfg.StoreDriver))
	}
	if !strings.Contains(cfg.CheckoutSuccessURL, "{CHECKOUT_SESSION_ID}") {
		l.invalid = append(l.invalid, "CHECKOUT_SUCCESS_URL lacks {CHECKOUT_SESSION_ID}")
	}
	if cfg.AccessTTLMin <= 0 {
		l.invalid = append(l.invalid, "ACCESS_TOKEN_TTL_MIN must be positive")
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	if cfg.IdempotencyWindow < 0 {
		cfg.IdempotencyWindow = 0
	}
	return cfg, l.err()
}

// loader collects problems instead of exiting on the first one.
type loader struct {
	missing []string
	invalid []string
}

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.missing = append(l.missing, key)
	}
	return v
}

func (l *loader) err() error {
	var parts []string
	if len(l.missing) > 0 {
		parts = append(parts, "missing required env vars: "+strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		parts = append(parts, "invalid config: "+strings.Join(l.invalid, "; "))
	}
	if len(parts) == 0 {
		return nil
	}
	return errors.New(strings.Join(parts, "; "))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
