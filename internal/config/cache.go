package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/langchou/parkgazer/internal/repository"
)

// DefaultCacheTTL 运营配置缓存默认时长
const DefaultCacheTTL = 5 * time.Minute

// 运营配置键
const (
	KeyFreeParkingMinutes = "free_parking_minutes"
	KeyAutoReportEnter    = "auto_report_enter"
	KeyAutoReportExit     = "auto_report_exit"
)

// Cache 运营配置缓存
// 调用方持有的显式对象，带 TTL 与手动刷新，不做全局单例
type Cache struct {
	mu       sync.RWMutex
	repo     *repository.SettingsRepository
	ttl      time.Duration
	values   map[string]string
	loadedAt time.Time
}

// NewCache 创建配置缓存，ttl <= 0 时用默认值
func NewCache(repo *repository.SettingsRepository, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		repo:   repo,
		ttl:    ttl,
		values: make(map[string]string),
	}
}

// Refresh 强制从数据库重载全部配置项
func (c *Cache) Refresh(ctx context.Context) error {
	values, err := c.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh settings cache: %w", err)
	}

	c.mu.Lock()
	c.values = values
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// ensureFresh TTL 过期时透明重载，重载失败保留旧值
func (c *Cache) ensureFresh(ctx context.Context) {
	c.mu.RLock()
	fresh := time.Since(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return
	}
	_ = c.Refresh(ctx)
}

// Get 读取配置项，缺失时返回默认值
func (c *Cache) Get(ctx context.Context, key, defaultValue string) string {
	c.ensureFresh(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	return defaultValue
}

// GetInt 读取整数配置项
func (c *Cache) GetInt(ctx context.Context, key string, defaultValue int) int {
	if v := c.Get(ctx, key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetBool 读取布尔配置项
func (c *Cache) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	if v := c.Get(ctx, key, ""); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Set 写穿：落库成功后更新本地缓存
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.repo.Set(ctx, key, value); err != nil {
		return err
	}
	c.mu.Lock()
	c.values[key] = value
	c.mu.Unlock()
	return nil
}
