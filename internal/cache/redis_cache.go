package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"paineluriel/backend/internal/domain"
)

type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(addr string, password string, db int) *RedisCartStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCartStore{client: client}
}

func (s *RedisCartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisCartStore) Close() error {
	return s.client.Close()
}

func cartKey(id string) string {
	return "cart:" + id
}

func (s *RedisCartStore) Get(ctx context.Context, id string) (*domain.Cart, bool, error) {
	val, err := s.client.Get(ctx, cartKey(id)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, false, err
	}
	return &cart, true, nil
}

func (s *RedisCartStore) Set(ctx context.Context, id string, cart *domain.Cart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey(id), payload, ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, cartKey(id)).Err()
}
