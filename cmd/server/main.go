package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paineluriel/backend/internal/cache"
	"paineluriel/backend/internal/cart"
	"paineluriel/backend/internal/checkout"
	"paineluriel/backend/internal/config"
	"paineluriel/backend/internal/content"
	"paineluriel/backend/internal/events"
	"paineluriel/backend/internal/gateway"
	"paineluriel/backend/internal/httpapi"
	"paineluriel/backend/internal/store"
	"paineluriel/backend/internal/store/memory"
	pgstore "paineluriel/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.New()
		log.Println("repository: in-memory")
	}

	var cartStore cache.CartStore = cache.NewMemoryCartStore()
	if cfg.RedisAddr != "" {
		redisStore := cache.NewRedisCartStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-memory carts", err)
		} else {
			cartStore = redisStore
			closers = append(closers, redisStore.Close)
			log.Println("carts: redis")
		}
	} else {
		log.Println("carts: in-memory")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers...)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		log.Printf("events: kafka (%d brokers)", len(cfg.KafkaBrokers))
	} else {
		log.Println("events: noop")
	}

	catalog := content.NewCatalog()
	notifications := content.NewNotificationFeed(catalog, time.Now().UnixNano())
	carts := cart.New(cartStore, catalog, cfg.CartTTL())
	pixGateway := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout())
	manager := checkout.NewManager(pixGateway, carts, repo, publisher, cfg.PollInterval(), cfg.PollTimeout())

	var auth *httpapi.AuthManager
	if cfg.AdminPassword != "" {
		var err error
		auth, err = httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.AdminPassword)
		if err != nil {
			log.Fatalf("auth manager: %v", err)
		}
		log.Println("admin surface: enabled")
	} else {
		log.Println("admin surface: disabled (ADMIN_PASSWORD not set)")
	}

	api := httpapi.New(carts, manager, pixGateway, repo, catalog, notifications, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("storefront backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("checkout shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// validateSecurityConfig only applies when the admin surface is on; the
// public storefront needs no secrets.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.AdminPassword == "" {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters when ADMIN_PASSWORD is set")
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}
