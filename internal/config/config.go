package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string
	LogLevel    string

	GatewayAddress    string
	GatewayUsername   string
	GatewayPassword   string
	GatewayHMACKey    string
	GatewayPublicKey  string
	GatewayTimeout    time.Duration
	GatewayRetryDelay time.Duration
	GatewayAttempts   int

	Currency              string
	DraftTTL              time.Duration
	FlatShippingCost      decimal.Decimal
	FreeShippingThreshold decimal.Decimal

	AuthSecret    string
	AuthTTL       time.Duration
	AdminLogin    string
	AdminPassword string

	VerifyInterval  time.Duration
	VerifyMinAge    time.Duration
	VerifyRate      float64
	WorkerPoolSize  int
	MaxVerifyBatch  int
	ShutdownTimeout time.Duration

	AllowedOrigins []string
}

const (
	defaultRunAddress            = ":8080"
	defaultLogLevel              = "info"
	defaultGatewayAddress        = "https://api.micuentaweb.pe"
	defaultGatewayTimeout        = 30 * time.Second
	defaultGatewayRetryDelay     = time.Second
	defaultGatewayAttempts       = 2
	defaultCurrency              = "PEN"
	defaultDraftTTL              = 2 * time.Hour
	defaultFlatShippingCost      = "15.00"
	defaultFreeShippingThreshold = "100.00"
	defaultAuthSecret            = "change-me-in-production"
	defaultAuthTTL               = 24 * time.Hour
	defaultVerifyInterval        = 30 * time.Second
	defaultVerifyMinAge          = time.Minute
	defaultVerifyRate            = 5.0
	defaultWorkerPoolSize        = 4
	defaultShutdownTimeout       = 10 * time.Second
	defaultMaxVerifyBatch        = 32
	defaultEnvFile               = ".env"
)

// Load parses configuration from flags, environment variables and an optional .env file.
func Load() (*Config, error) {
	envFile := defaultEnvFile
	if v, ok := os.LookupEnv("ENV_FILE"); ok && v != "" {
		envFile = v
	}
	dotenv, err := readDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	return load(os.Args[1:], chain(os.LookupEnv, mapLookup(dotenv)))
}

type envLookup func(string) (string, bool)

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read env file: %w", err)
	}
	return values, nil
}

func mapLookup(values map[string]string) envLookup {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// chain consults lookups in order; the first non-empty value wins.
func chain(lookups ...envLookup) envLookup {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if v, ok := lookup(key); ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:        getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:       getString(lookup, "DATABASE_URI", ""),
		LogLevel:          getString(lookup, "LOG_LEVEL", defaultLogLevel),
		GatewayAddress:    getString(lookup, "GATEWAY_ADDRESS", defaultGatewayAddress),
		GatewayUsername:   getString(lookup, "GATEWAY_USERNAME", ""),
		GatewayPassword:   getString(lookup, "GATEWAY_PASSWORD", ""),
		GatewayHMACKey:    getString(lookup, "GATEWAY_HMAC_KEY", ""),
		GatewayPublicKey:  getString(lookup, "GATEWAY_PUBLIC_KEY", ""),
		GatewayTimeout:    getDuration(lookup, "GATEWAY_TIMEOUT", defaultGatewayTimeout),
		GatewayRetryDelay: getDuration(lookup, "GATEWAY_RETRY_DELAY", defaultGatewayRetryDelay),
		GatewayAttempts:   getInt(lookup, "GATEWAY_ATTEMPTS", defaultGatewayAttempts),
		Currency:          strings.ToUpper(getString(lookup, "CURRENCY", defaultCurrency)),
		DraftTTL:          getDuration(lookup, "DRAFT_TTL", defaultDraftTTL),
		AuthSecret:        getString(lookup, "AUTH_SECRET", defaultAuthSecret),
		AuthTTL:           getDuration(lookup, "AUTH_TTL", defaultAuthTTL),
		AdminLogin:        getString(lookup, "ADMIN_LOGIN", ""),
		AdminPassword:     getString(lookup, "ADMIN_PASSWORD", ""),
		VerifyInterval:    getDuration(lookup, "VERIFY_INTERVAL", defaultVerifyInterval),
		VerifyMinAge:      getDuration(lookup, "VERIFY_MIN_AGE", defaultVerifyMinAge),
		VerifyRate:        getFloat(lookup, "VERIFY_RATE", defaultVerifyRate),
		WorkerPoolSize:    getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		MaxVerifyBatch:    getInt(lookup, "VERIFY_BATCH", defaultMaxVerifyBatch),
		ShutdownTimeout:   getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("draftpay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		verifyIntervalStr  = cfg.VerifyInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		draftTTLStr        = cfg.DraftTTL.String()
		flatShippingStr    = getString(lookup, "FLAT_SHIPPING_COST", defaultFlatShippingCost)
		freeThresholdStr   = getString(lookup, "FREE_SHIPPING_THRESHOLD", defaultFreeShippingThreshold)
		originsStr         = getString(lookup, "ALLOWED_ORIGINS", "*")
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.GatewayAddress, "g", cfg.GatewayAddress, "Payment gateway base URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "Secret for signing auth tokens")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent verification workers")
	fs.IntVar(&cfg.MaxVerifyBatch, "verify-batch", cfg.MaxVerifyBatch, "Maximum sessions per verification batch")
	fs.StringVar(&verifyIntervalStr, "verify-interval", verifyIntervalStr, "Interval between payment verification polls")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&draftTTLStr, "draft-ttl", draftTTLStr, "Reservation window of a draft")
	fs.StringVar(&originsStr, "origins", originsStr, "Comma separated CORS origins")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.VerifyInterval, err = time.ParseDuration(verifyIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid verify interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.DraftTTL, err = time.ParseDuration(draftTTLStr); err != nil {
		return nil, fmt.Errorf("invalid draft ttl: %w", err)
	}

	if cfg.FlatShippingCost, err = decimal.NewFromString(flatShippingStr); err != nil {
		return nil, fmt.Errorf("invalid flat shipping cost: %w", err)
	}

	if cfg.FreeShippingThreshold, err = decimal.NewFromString(freeThresholdStr); err != nil {
		return nil, fmt.Errorf("invalid free shipping threshold: %w", err)
	}

	cfg.AllowedOrigins = splitList(originsStr)

	secrets := []struct {
		key    string
		target *string
	}{
		{"AUTH_SECRET_FILE", &cfg.AuthSecret},
		{"GATEWAY_PASSWORD_FILE", &cfg.GatewayPassword},
		{"GATEWAY_HMAC_KEY_FILE", &cfg.GatewayHMACKey},
	}
	for _, s := range secrets {
		if path, ok := lookup(s.key); ok && path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", strings.ToLower(s.key), err)
			}
			*s.target = strings.TrimSpace(string(content))
		}
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.MaxVerifyBatch <= 0 {
		cfg.MaxVerifyBatch = defaultMaxVerifyBatch
	}

	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = defaultVerifyInterval
	}

	if cfg.VerifyMinAge < 0 {
		cfg.VerifyMinAge = defaultVerifyMinAge
	}

	if cfg.VerifyRate <= 0 {
		cfg.VerifyRate = defaultVerifyRate
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DraftTTL <= 0 {
		cfg.DraftTTL = defaultDraftTTL
	}

	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}

	if cfg.GatewayRetryDelay <= 0 {
		cfg.GatewayRetryDelay = defaultGatewayRetryDelay
	}

	if cfg.GatewayAttempts <= 0 {
		cfg.GatewayAttempts = defaultGatewayAttempts
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.GatewayUsername == "" || cfg.GatewayPassword == "" {
		return nil, fmt.Errorf("gateway credentials must be provided")
	}

	if cfg.GatewayHMACKey == "" {
		return nil, fmt.Errorf("gateway HMAC key must be provided")
	}

	if cfg.GatewayHMACKey == cfg.GatewayPassword {
		return nil, fmt.Errorf("gateway HMAC key and password must differ")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
