// Package store defines the persistence contract for charge attempts.
// Implementations live in the memory and postgres subpackages; the
// server picks one at startup based on configuration.
package store

import (
	"context"
	"errors"

	"paineluriel/backend/internal/domain"
)

var ErrNotFound = errors.New("store: not found")

type Repository interface {
	CreateChargeAttempt(ctx context.Context, attempt *domain.ChargeAttempt) error
	UpdateChargeStatus(ctx context.Context, id string, status string) error
	FindChargeByExternalID(ctx context.Context, externalID string) (*domain.ChargeAttempt, error)
	ListChargeAttempts(ctx context.Context, limit int) ([]*domain.ChargeAttempt, error)
}
