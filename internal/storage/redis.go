package storage

import (
	"context"
	"crypto/tls"
	"fmt"

	config "github.com/JeroniMan/solana-indexer/configs"
	"github.com/JeroniMan/solana-indexer/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var DEFAULT_REDIS_POOL_SIZE = 20

const defaultRedisKeyPrefix = "solana-indexer"

// RedisCheckpointStore keeps one hash per stage, keyed by worker id.
type RedisCheckpointStore struct {
	client *redis.Client
	cfg    *config.RedisConfig
}

func NewRedisCheckpointStore(cfg *config.RedisConfig) (*RedisCheckpointStore, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DEFAULT_REDIS_POOL_SIZE
	}

	options := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	}
	if cfg.EnableTLS {
		options.TLSConfig = &tls.Config{}
	}

	client := redis.NewClient(options)

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Connected to Redis")
	return &RedisCheckpointStore{client: client, cfg: cfg}, nil
}

func (r *RedisCheckpointStore) ReadCheckpoint(ctx context.Context, stage string, workerID string) (*common.Checkpoint, error) {
	value, err := r.client.HGet(ctx, r.stageKey(stage), workerID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s/%s: %w", stage, workerID, err)
	}
	cp, err := common.StringToCheckpoint(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s/%s: %w", stage, workerID, err)
	}
	return &cp, nil
}

func (r *RedisCheckpointStore) WriteCheckpoint(ctx context.Context, cp common.Checkpoint) error {
	if err := validateCheckpoint(cp); err != nil {
		return err
	}
	value, err := common.CheckpointToString(cp)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.stageKey(cp.Stage), cp.WorkerID, value).Err(); err != nil {
		return fmt.Errorf("failed to write checkpoint %s/%s: %w", cp.Stage, cp.WorkerID, err)
	}
	return nil
}

func (r *RedisCheckpointStore) ListCheckpoints(ctx context.Context, stage string) ([]common.Checkpoint, error) {
	values, err := r.client.HGetAll(ctx, r.stageKey(stage)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for %s: %w", stage, err)
	}
	checkpoints := make([]common.Checkpoint, 0, len(values))
	for workerID, value := range values {
		cp, err := common.StringToCheckpoint(value)
		if err != nil {
			return nil, fmt.Errorf("failed to decode checkpoint %s/%s: %w", stage, workerID, err)
		}
		checkpoints = append(checkpoints, cp)
	}
	sortCheckpoints(checkpoints)
	return checkpoints, nil
}

func (r *RedisCheckpointStore) DeleteCheckpoints(ctx context.Context, stage string) (int, error) {
	count, err := r.client.HLen(ctx, r.stageKey(stage)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count checkpoints for %s: %w", stage, err)
	}
	if err := r.client.Del(ctx, r.stageKey(stage)).Err(); err != nil {
		return 0, fmt.Errorf("failed to delete checkpoints for %s: %w", stage, err)
	}
	return int(count), nil
}

func (r *RedisCheckpointStore) Close() error {
	return r.client.Close()
}

func (r *RedisCheckpointStore) stageKey(stage string) string {
	prefix := r.cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return fmt.Sprintf("%s:checkpoints:%s", prefix, stage)
}
