package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"paineluriel/backend/internal/domain"
	"paineluriel/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS charge_attempts (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			external_id TEXT NOT NULL DEFAULT '',
			amount_cents BIGINT NOT NULL,
			buyer_name TEXT NOT NULL DEFAULT '',
			buyer_email TEXT NOT NULL DEFAULT '',
			product TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_charge_attempts_external_id ON charge_attempts (external_id);
		CREATE INDEX IF NOT EXISTS idx_charge_attempts_created_at ON charge_attempts (created_at DESC);
	`)
	return err
}

func (s *Store) CreateChargeAttempt(ctx context.Context, attempt *domain.ChargeAttempt) error {
	now := time.Now().UTC()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO charge_attempts (
			id, flow_id, external_id, amount_cents, buyer_name, buyer_email,
			product, status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, attempt.ID, attempt.FlowID, attempt.ExternalID, attempt.AmountCents,
		attempt.BuyerName, attempt.BuyerEmail, attempt.Product, attempt.Status,
		attempt.CreatedAt, attempt.UpdatedAt)
	return err
}

func (s *Store) UpdateChargeStatus(ctx context.Context, id string, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE charge_attempts
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindChargeByExternalID(ctx context.Context, externalID string) (*domain.ChargeAttempt, error) {
	var attempt domain.ChargeAttempt
	err := s.db.QueryRowContext(ctx, `
		SELECT id, flow_id, external_id, amount_cents, buyer_name, buyer_email,
			product, status, created_at, updated_at
		FROM charge_attempts
		WHERE external_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, externalID).Scan(
		&attempt.ID,
		&attempt.FlowID,
		&attempt.ExternalID,
		&attempt.AmountCents,
		&attempt.BuyerName,
		&attempt.BuyerEmail,
		&attempt.Product,
		&attempt.Status,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	attempt.CreatedAt = attempt.CreatedAt.UTC()
	attempt.UpdatedAt = attempt.UpdatedAt.UTC()
	return &attempt, nil
}

func (s *Store) ListChargeAttempts(ctx context.Context, limit int) ([]*domain.ChargeAttempt, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, flow_id, external_id, amount_cents, buyer_name, buyer_email,
			product, status, created_at, updated_at
		FROM charge_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*domain.ChargeAttempt, 0, limit)
	for rows.Next() {
		var attempt domain.ChargeAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.FlowID,
			&attempt.ExternalID,
			&attempt.AmountCents,
			&attempt.BuyerName,
			&attempt.BuyerEmail,
			&attempt.Product,
			&attempt.Status,
			&attempt.CreatedAt,
			&attempt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		attempt.CreatedAt = attempt.CreatedAt.UTC()
		attempt.UpdatedAt = attempt.UpdatedAt.UTC()
		attempts = append(attempts, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}
