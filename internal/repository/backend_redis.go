package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RegistrationsKey holds the encoded collection in the redis backend.
const RegistrationsKey = "alerts:registrations"

type redisBackend struct {
	client redis.Cmdable
	key    string
}

// NewRedisBackend stores the collection under a single string key.
func NewRedisBackend(client redis.Cmdable) RegistrationBackend {
	return &redisBackend{client: client, key: RegistrationsKey}
}

func (b *redisBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.key, err)
	}
	return data, nil
}

func (b *redisBackend) Write(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", b.key, err)
	}
	return nil
}
