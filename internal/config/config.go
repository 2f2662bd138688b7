package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Holds    HoldsConfig
	Payment  PaymentConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type HoldsConfig struct {
	DefaultTTL    time.Duration
	MinTTL        time.Duration
	MaxTTL        time.Duration
	SweepInterval time.Duration
}

type PaymentConfig struct {
	GatewayURL string
	Timeout    time.Duration
}

type LimitsConfig struct {
	HoldsPerWindow int
	Window         time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPort, err := envInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPort, err := envInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	holdTTL, err := envDuration("HOLD_TTL", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	holdMinTTL, err := envDuration("HOLD_MIN_TTL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	holdMaxTTL, err := envDuration("HOLD_MAX_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	sweepInterval, err := envDuration("HOLD_SWEEP_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	gatewayURL := os.Getenv("PAYMENT_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:9090"
	}

	paymentTimeout, err := envDuration("PAYMENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	holdsPerWindow, err := envInt("RATE_LIMIT_HOLDS", 10)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	rateWindow, err := envDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &Config{
		Server: ServerConfig{
			Host: serverHost,
			Port: serverPort,
		},
		Postgres: PostgresConfig{
			User:     postgresUser,
			Password: postgresPassword,
			Name:     postgresDB,
			Host:     postgresHost,
			Port:     postgresPort,
			SSLMode:  postgresSSLMode,
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Holds: HoldsConfig{
			DefaultTTL:    holdTTL,
			MinTTL:        holdMinTTL,
			MaxTTL:        holdMaxTTL,
			SweepInterval: sweepInterval,
		},
		Payment: PaymentConfig{
			GatewayURL: gatewayURL,
			Timeout:    paymentTimeout,
		},
		Limits: LimitsConfig{
			HoldsPerWindow: holdsPerWindow,
			Window:         rateWindow,
		},
	}, nil
}

func envInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}
