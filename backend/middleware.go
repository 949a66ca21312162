// backend/middleware.go
package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPRateLimiter 存储每个IP地址的速率限制器
type IPRateLimiter struct {
	ips      map[string]*rate.Limiter
	mu       sync.Mutex
	requests int
	duration time.Duration
}

func NewIPRateLimiter(r int, d time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		ips:      make(map[string]*rate.Limiter),
		requests: r,
		duration: d,
	}
}

// getLimiter 获取一个IP的速率限制器，不存在时创建
func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limiter, ok := i.ips[ip]; ok {
		return limiter
	}

	// 在 duration 内允许 requests 次请求
	limiter := rate.NewLimiter(rate.Limit(float64(i.requests)/i.duration.Seconds()), i.requests)
	i.ips[ip] = limiter

	// 持续时间结束后从 map 中删除此 IP，防止内存泄漏
	time.AfterFunc(i.duration, func() {
		i.mu.Lock()
		delete(i.ips, ip)
		i.mu.Unlock()
	})

	return limiter
}

// RateLimitMiddleware 是 Gin 中间件函数
func (i *IPRateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !i.getLimiter(c.ClientIP()).Allow() {
			slog.Warn("速率限制触发", "clientIP", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "请求过于频繁，请稍后再试。"})
			return
		}
		c.Next()
	}
}
