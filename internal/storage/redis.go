package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

const (
	redisBatchKey  = "poster:" + lastBatchKey
	redisStatusKey = "poster:" + runStatusKey
)

// RedisStorage keeps the last batch as a Redis list and the run status as JSON
type RedisStorage struct {
	client redis.UniversalClient
}

// NewRedisStorage connects from a redis:// URL or a plain host:port
func NewRedisStorage(ctx context.Context, cfg config.StorageConfig) (*RedisStorage, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required for redis storage")
	}

	var client *redis.Client
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return newRedisStorage(client), nil
}

func newRedisStorage(client redis.UniversalClient) *RedisStorage {
	return &RedisStorage{client: client}
}

// LoadLastBatch reads the batch list
func (r *RedisStorage) LoadLastBatch(ctx context.Context) (models.PostedBatch, error) {
	ids, err := r.client.LRange(ctx, redisBatchKey, 0, -1).Result()
	if err != nil {
		return models.PostedBatch{}, persistenceError("read last batch", err)
	}
	return models.NewPostedBatch(ids...), nil
}

// SaveLastBatch replaces the batch list atomically
func (r *RedisStorage) SaveLastBatch(ctx context.Context, batch models.PostedBatch) error {
	ids := batch.IDs()
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, redisBatchKey)
		if len(ids) > 0 {
			values := make([]interface{}, len(ids))
			for i, id := range ids {
				values[i] = id
			}
			p.RPush(ctx, redisBatchKey, values...)
		}
		return nil
	})
	if err != nil {
		return persistenceError("write last batch", err)
	}
	return nil
}

// UpdateRunStatus stores the status as JSON
func (r *RedisStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return persistenceError("marshal run status", err)
	}
	if err := r.client.Set(ctx, redisStatusKey, data, 0).Err(); err != nil {
		return persistenceError("write run status", err)
	}
	return nil
}

// GetRunStatus reads the status JSON
func (r *RedisStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	data, err := r.client.Get(ctx, redisStatusKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return neverRunStatus(), nil
	}
	if err != nil {
		return nil, persistenceError("read run status", err)
	}

	var status models.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, persistenceError("unmarshal run status", err)
	}
	return &status, nil
}

// Close closes the client
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
