package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	GatewayBaseURL        string
	GatewayTimeoutSeconds int
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	KafkaBrokers          []string
	PollIntervalSeconds   int
	PollTimeoutMinutes    int
	CartTTLMinutes        int
	AuthSecret            string
	AccessTokenTTLMinutes int
	AdminPassword         string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	gatewayTimeout := getIntEnv("GATEWAY_TIMEOUT_SECONDS", 15)
	pollInterval := getIntEnv("CHECKOUT_POLL_INTERVAL_SECONDS", 7)
	pollTimeout := getIntEnv("CHECKOUT_POLL_TIMEOUT_MINUTES", 30)
	cartTTL := getIntEnv("CART_TTL_MINUTES", 120)
	tokenTTL := getIntEnv("ACCESS_TOKEN_TTL_MINUTES", 480)

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		GatewayBaseURL:        getEnv("GATEWAY_BASE_URL", "https://nashapi-buckpay.squareweb.app"),
		GatewayTimeoutSeconds: gatewayTimeout,
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		PollIntervalSeconds:   pollInterval,
		PollTimeoutMinutes:    pollTimeout,
		CartTTLMinutes:        cartTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		AdminPassword:         strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMinutes) * time.Minute
}

func (c Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getIntEnv(key string, fallback int) int {
	parsed, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
