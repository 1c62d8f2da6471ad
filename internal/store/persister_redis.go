package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "camrent:container:"

// RedisPersister stores each container under one Redis string key. Keys carry no TTL.
type RedisPersister struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPersister(client redis.UniversalClient, prefix string) (*RedisPersister, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisPersister{client: client, prefix: prefix}, nil
}

func (p *RedisPersister) key(name string) string {
	return p.prefix + name
}

func (p *RedisPersister) Load(ctx context.Context, name string) ([]byte, error) {
	b, err := p.client.Get(ctx, p.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return b, nil
}

func (p *RedisPersister) Save(ctx context.Context, name string, data []byte) error {
	if err := p.client.Set(ctx, p.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (p *RedisPersister) Delete(ctx context.Context, name string) error {
	if err := p.client.Del(ctx, p.key(name)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}
