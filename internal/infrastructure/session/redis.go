// Package session stores per-checkout-session state, the gateway order
// cached for each invoice, and provides a Redis-backed transaction lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/redis/go-redis/v9"
)

func sessionKey(sessionID, key string) string {
	return fmt.Sprintf("checkout:%s:%s", sessionID, key)
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore keeps checkout sessions in Redis with a TTL per entry.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStore) Scoped(sessionID string) application.SessionStore {
	return &redisSession{store: r, sessionID: sessionID}
}

type redisSession struct {
	store     *RedisStore
	sessionID string
}

func (s *redisSession) Scope() string { return s.sessionID }

func (s *redisSession) Get(ctx context.Context, key string) (string, bool, error) {
	orderID, err := s.store.client.Get(ctx, sessionKey(s.sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET error: %w", err)
	}
	return orderID, true, nil
}

func (s *redisSession) Set(ctx context.Context, key, orderID string) error {
	if err := s.store.client.Set(ctx, sessionKey(s.sessionID, key), orderID, s.store.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET error: %w", err)
	}
	return nil
}

func (s *redisSession) Clear(ctx context.Context, key string) error {
	if err := s.store.client.Del(ctx, sessionKey(s.sessionID, key)).Err(); err != nil {
		return fmt.Errorf("redis DEL error: %w", err)
	}
	return nil
}
