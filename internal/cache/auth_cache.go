package cache

import (
	"sync"
	"time"
)

// 授权结果的缓存时长：通过的标签可以缓存较久，被拒绝的只短暂缓存
const (
	DefaultPositiveTTL = 15 * time.Minute
	DefaultNegativeTTL = time.Minute
)

// Entry 一条授权缓存记录
type Entry struct {
	IdTag     string    `json:"id_tag"`
	Status    string    `json:"status"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired 检查是否过期
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(e.ExpiresAt)
}

// IsAccepted 缓存的授权结果是否为通过
func (e *Entry) IsAccepted() bool {
	return e.Status == "Accepted"
}

// AuthorizationCache 站内 idTag→授权状态 的TTL缓存
// ATG在发起Authorize前先查缓存，ClearCache指令清空缓存
type AuthorizationCache struct {
	entries     map[string]*Entry
	positiveTTL time.Duration
	negativeTTL time.Duration
	mu          sync.RWMutex
}

// NewAuthorizationCache 创建授权缓存，ttl传0时使用默认值
func NewAuthorizationCache(positiveTTL, negativeTTL time.Duration) *AuthorizationCache {
	if positiveTTL <= 0 {
		positiveTTL = DefaultPositiveTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultNegativeTTL
	}
	return &AuthorizationCache{
		entries:     make(map[string]*Entry),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
	}
}

// Get 查询标签的缓存授权结果，过期条目惰性删除
func (c *AuthorizationCache) Get(idTag string) (*Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[idTag]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.IsExpired() {
		c.mu.Lock()
		// 双检：期间可能已被并发写入新条目
		if current, still := c.entries[idTag]; still && current == entry {
			delete(c.entries, idTag)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Put 写入授权结果，按结果正负选择TTL
func (c *AuthorizationCache) Put(idTag, status string) {
	now := time.Now()
	ttl := c.negativeTTL
	if status == "Accepted" {
		ttl = c.positiveTTL
	}
	entry := &Entry{
		IdTag:     idTag,
		Status:    status,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	c.entries[idTag] = entry
	c.mu.Unlock()
}

// Delete 删除单个标签的缓存
func (c *AuthorizationCache) Delete(idTag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[idTag]; !ok {
		return false
	}
	delete(c.entries, idTag)
	return true
}

// Clear 清空缓存，返回清除的条目数
func (c *AuthorizationCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*Entry)
	return n
}

// Size 当前条目数，含尚未惰性清理的过期条目
func (c *AuthorizationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
