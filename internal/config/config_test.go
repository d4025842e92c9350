package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("GATEWAY_BASE_URL", "")
	t.Setenv("CHECKOUT_POLL_INTERVAL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.GatewayBaseURL == "" {
		t.Fatalf("expected a default gateway base URL")
	}
	if cfg.PollIntervalSeconds != 7 {
		t.Fatalf("expected default poll interval of 7s, got %d", cfg.PollIntervalSeconds)
	}
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("CHECKOUT_POLL_INTERVAL_SECONDS", "0")
	t.Setenv("GATEWAY_TIMEOUT_SECONDS", "banana")

	cfg := Load()
	if cfg.PollIntervalSeconds != 7 {
		t.Fatalf("expected fallback poll interval, got %d", cfg.PollIntervalSeconds)
	}
	if cfg.GatewayTimeoutSeconds != 15 {
		t.Fatalf("expected fallback gateway timeout, got %d", cfg.GatewayTimeoutSeconds)
	}
}

func TestKafkaBrokersSplit(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")

	cfg := Load()
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("expected trimmed broker, got %q", cfg.KafkaBrokers[1])
	}
}

func TestLoadDoesNotInjectAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPassword != "" {
		t.Fatalf("expected empty ADMIN_PASSWORD when unset, got %q", cfg.AdminPassword)
	}
}
