package gateway

import (
	"sync"
	"time"
)

// joinLimiter 按连接限制 room:join 的尝试次数 (滑动窗口)
type joinLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func newJoinLimiter(limit int, interval time.Duration) *joinLimiter {
	return &joinLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Allow 记录一次尝试，超过窗口内上限时返回 false。limit <= 0 表示不限制。
func (l *joinLimiter) Allow(connID string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.interval)
	attempts := l.history[connID]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= l.limit {
		l.history[connID] = fresh
		return false
	}
	l.history[connID] = append(fresh, now)
	return true
}

func (l *joinLimiter) Forget(connID string) {
	l.mu.Lock()
	delete(l.history, connID)
	l.mu.Unlock()
}
