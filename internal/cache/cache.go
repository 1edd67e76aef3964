package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 缓存键与频道
const (
	KeyStatusPrefix = "parkgazer:status:"
	ChannelStatus   = "parkgazer:status_updates"
	ChannelGeofence = "parkgazer:geofence_events"
)

// StatusTTL 状态缓存时长
const StatusTTL = 2 * time.Minute

// Service Redis 缓存与发布服务
// client 为 nil 时全部操作静默降级，Redis 是可选依赖不是必选
type Service struct {
	client *redis.Client
	logger *zap.Logger
}

// New 创建缓存服务，addr 为空时返回禁用实例
func New(logger *zap.Logger, addr, password string, db int) *Service {
	if addr == "" {
		logger.Info("Redis disabled, cache and pub/sub degraded to no-op")
		return &Service{logger: logger}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, cache degraded to no-op", zap.Error(err))
		return &Service{logger: logger}
	}

	return &Service{client: client, logger: logger}
}

// Available Redis 是否可用
func (s *Service) Available() bool {
	return s.client != nil
}

// Get 读取并反序列化，未命中返回 false
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set 序列化写入
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Delete 删除缓存键
func (s *Service) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

// Publish 向频道发布消息
func (s *Service) Publish(ctx context.Context, channel string, message interface{}) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Close 关闭连接
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
