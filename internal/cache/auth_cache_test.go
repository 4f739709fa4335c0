package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationCache(t *testing.T) {
	t.Run("写入后可读", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, time.Minute)
		c.Put("TAG001", "Accepted")

		entry, ok := c.Get("TAG001")
		require.True(t, ok)
		assert.Equal(t, "TAG001", entry.IdTag)
		assert.True(t, entry.IsAccepted())
	})

	t.Run("未命中", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, time.Minute)
		_, ok := c.Get("UNKNOWN")
		assert.False(t, ok)
	})

	t.Run("正向条目按positiveTTL过期", func(t *testing.T) {
		c := NewAuthorizationCache(10*time.Millisecond, time.Minute)
		c.Put("TAG001", "Accepted")

		_, ok := c.Get("TAG001")
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)
		_, ok = c.Get("TAG001")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Size()) // 过期条目被惰性清理
	})

	t.Run("负向条目按negativeTTL过期", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, 10*time.Millisecond)
		c.Put("TAG001", "Invalid")

		entry, ok := c.Get("TAG001")
		require.True(t, ok)
		assert.False(t, entry.IsAccepted())

		time.Sleep(20 * time.Millisecond)
		_, ok = c.Get("TAG001")
		assert.False(t, ok)
	})

	t.Run("覆盖写刷新状态", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, time.Minute)
		c.Put("TAG001", "Invalid")
		c.Put("TAG001", "Accepted")

		entry, ok := c.Get("TAG001")
		require.True(t, ok)
		assert.Equal(t, "Accepted", entry.Status)
	})

	t.Run("Delete删除指定条目", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, time.Minute)
		c.Put("TAG001", "Accepted")

		assert.True(t, c.Delete("TAG001"))
		assert.False(t, c.Delete("TAG001"))
		_, ok := c.Get("TAG001")
		assert.False(t, ok)
	})

	t.Run("Clear清空并返回条目数", func(t *testing.T) {
		c := NewAuthorizationCache(time.Minute, time.Minute)
		c.Put("TAG001", "Accepted")
		c.Put("TAG002", "Blocked")

		assert.Equal(t, 2, c.Clear())
		assert.Equal(t, 0, c.Size())
	})

	t.Run("ttl为0时使用默认值", func(t *testing.T) {
		c := NewAuthorizationCache(0, 0)
		assert.Equal(t, DefaultPositiveTTL, c.positiveTTL)
		assert.Equal(t, DefaultNegativeTTL, c.negativeTTL)
	})
}

func TestEntryIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"零值永不过期", time.Time{}, false},
		{"未来时间未过期", time.Now().Add(time.Hour), false},
		{"过去时间已过期", time.Now().Add(-time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, entry.IsExpired())
		})
	}
}
