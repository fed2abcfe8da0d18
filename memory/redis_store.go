package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptmesh/contextcore/types"
)

// RedisOptions configures the Redis record store backend.
type RedisOptions struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// KeyPrefix defaults to "contextcore:".
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisRecordStore persists memory records in Redis. Each record is a JSON
// string value; a per-agent sorted set indexes record IDs by creation time.
type RedisRecordStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisRecordStore connects to Redis and verifies the connection.
func NewRedisRecordStore(opts RedisOptions, logger *zap.Logger) (*RedisRecordStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := opts.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "contextcore:"
	}
	return &RedisRecordStore{
		client:    client,
		keyPrefix: keyPrefix + "memory:",
		logger:    logger.With(zap.String("component", "record_store_redis")),
	}, nil
}

func (s *RedisRecordStore) recordKey(id string) string {
	return s.keyPrefix + "record:" + id
}

func (s *RedisRecordStore) agentKey(agentID string) string {
	return s.keyPrefix + "agent:" + agentID
}

func (s *RedisRecordStore) Put(ctx context.Context, rec *types.MemoryRecord) error {
	if rec == nil || rec.ID == "" {
		return types.NewError(types.ErrInvalidRecord, "record with ID is required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(rec.ID), data, 0)
	pipe.ZAdd(ctx, s.agentKey(rec.AgentID), redis.Z{
		Score:  float64(rec.CreatedAt.UnixNano()),
		Member: rec.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRecordStore) Get(ctx context.Context, id string) (*types.MemoryRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec types.MemoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisRecordStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(id))
	pipe.ZRem(ctx, s.agentKey(rec.AgentID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRecordStore) List(ctx context.Context, filter RecordFilter) ([]*types.MemoryRecord, error) {
	if filter.AgentID == "" {
		return nil, fmt.Errorf("agent ID is required for redis listing")
	}

	// Newest first via the per-agent time index.
	ids, err := s.client.ZRevRange(ctx, s.agentKey(filter.AgentID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	recs := make([]*types.MemoryRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if !recordMatches(rec, filter) {
			continue
		}
		recs = append(recs, rec)
		if filter.Limit > 0 && len(recs) >= filter.Limit {
			break
		}
	}
	return recs, nil
}

func (s *RedisRecordStore) Count(ctx context.Context, agentID string) (int, error) {
	n, err := s.client.ZCard(ctx, s.agentKey(agentID)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *RedisRecordStore) Close() error {
	return s.client.Close()
}

// Ping checks store health.
func (s *RedisRecordStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ RecordStore = (*RedisRecordStore)(nil)
