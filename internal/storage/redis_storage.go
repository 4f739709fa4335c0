package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/charging-platform/charge-station-simulator/internal/config"
)

// RedisStorage 使用 Redis 存储站点快照，多实例模拟器可共享同一车队状态
type RedisStorage struct {
	Client *redis.Client // 公共字段以便测试注入 mock 客户端
	Prefix string
	TTL    time.Duration
}

// NewRedisStorage 创建一个新的 RedisStorage 实例并验证连通性
func NewRedisStorage(cfg config.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStorage{Client: client, Prefix: "station:", TTL: cfg.SnapshotTTL}, nil
}

// Save 写入站点快照，按配置的TTL过期
func (r *RedisStorage) Save(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", snapshot.StationID, err)
	}
	key := fmt.Sprintf("%s%s", r.Prefix, snapshot.StationID)
	return r.Client.Set(ctx, key, data, r.TTL).Err()
}

// Load 读取站点快照，键不存在时返回 (nil, nil)
func (r *RedisStorage) Load(ctx context.Context, stationID string) (*Snapshot, error) {
	key := fmt.Sprintf("%s%s", r.Prefix, stationID)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", stationID, err)
	}
	return &snapshot, nil
}

// Delete 删除站点快照
func (r *RedisStorage) Delete(ctx context.Context, stationID string) error {
	key := fmt.Sprintf("%s%s", r.Prefix, stationID)
	return r.Client.Del(ctx, key).Err()
}

// Close 关闭与存储后端的连接
func (r *RedisStorage) Close() error {
	return r.Client.Close()
}
