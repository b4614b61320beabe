package ratelimiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "relay:client:"

// RedisBackend keeps client records as JSON values under relay:client:<id>.
type RedisBackend struct {
	ctx    context.Context
	client *redis.Client
}

// NewRedisBackend connects to addr and checks the server answers a PING.
func NewRedisBackend(ctx context.Context, addr string) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ratelimiter: redis at %s unavailable: %w", addr, err)
	}
	return &RedisBackend{
		ctx:    ctx,
		client: client,
	}, nil
}

func redisKey(id ClientID) string {
	return redisKeyPrefix + string(id)
}

func (rb *RedisBackend) Get(id ClientID) (*ClientRecord, error) {
	result, err := rb.client.Get(rb.ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var record ClientRecord
	if err := json.Unmarshal([]byte(result), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (rb *RedisBackend) Set(id ClientID, record *ClientRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return rb.client.Set(rb.ctx, redisKey(id), jsonData, 0).Err()
}

func (rb *RedisBackend) Delete(id ClientID) error {
	return rb.client.Del(rb.ctx, redisKey(id)).Err()
}

func (rb *RedisBackend) List() (map[ClientID]*ClientRecord, error) {
	keys, err := rb.client.Keys(rb.ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}

	result := make(map[ClientID]*ClientRecord, len(keys))
	for _, key := range keys {
		val, err := rb.client.Get(rb.ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// deleted between KEYS and GET
			continue
		}
		if err != nil {
			return nil, err
		}

		var record ClientRecord
		if err := json.Unmarshal([]byte(val), &record); err != nil {
			return nil, fmt.Errorf("ratelimiter: decode %s: %w", key, err)
		}
		result[ClientID(strings.TrimPrefix(key, redisKeyPrefix))] = &record
	}
	return result, nil
}

func (rb *RedisBackend) Clear() error {
	keys, err := rb.client.Keys(rb.ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rb.client.Del(rb.ctx, keys...).Err()
}

func (rb *RedisBackend) Close() error {
	return rb.client.Close()
}
