// Package cache 提供带 TTL 的进程内结果缓存
//
// 缓存以请求的规范化键为索引, 条目在写入后固定存活 TTL 时长,
// 读取不刷新存活期。过期条目在读取时惰性淘汰, 不依赖后台清理协程。
package cache

import (
	"sync"
	"time"

	"github.com/RecoveryAshes/SocialPeek/internal/models"
	"github.com/RecoveryAshes/SocialPeek/internal/utils"
)

// entry 缓存条目, 记录写入时刻用于过期判断
type entry struct {
	result   *models.FetchResult
	storedAt time.Time
}

// TTLCache 固定存活期的结果缓存
type TTLCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int // 0 表示不限制条目数

	// 可注入时钟, 便于测试
	now func() time.Time
}

// NewTTLCache 创建结果缓存
func NewTTLCache(ttl time.Duration, maxEntries int) *TTLCache {
	return &TTLCache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get 查询缓存, 命中且未过期时返回结果副本
// 过期条目在此处惰性删除
func (c *TTLCache) Get(key string) (*models.FetchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		utils.Debugf("缓存条目已过期: %s", shortKey(key))
		return nil, false
	}
	return e.result, true
}

// Set 写入缓存, 已存在的键被覆盖且存活期重新计算
// 超过容量上限时淘汰最旧的条目
func (c *TTLCache) Set(key string, result *models.FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldest(now)
	}
	c.entries[key] = entry{result: result, storedAt: now}
}

// evictOldest 删除过期条目, 若仍超限则删除最旧的一条
// 调用方必须持有 c.mu
func (c *TTLCache) evictOldest(now time.Time) {
	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// shortKey 日志用的键前缀, 兼容任意长度的键
func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// Len 当前条目数 (含未被惰性淘汰的过期条目)
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空全部缓存条目
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
