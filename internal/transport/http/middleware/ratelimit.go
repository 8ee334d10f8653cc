// Package middleware file: internal/transport/http/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// IPRateLimiter 按客户端 IP 做令牌桶限速。
// 限制器条目放在带过期的缓存里，不活跃的 IP 会被自动清理。
type IPRateLimiter struct {
	limiters *cache.Cache
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter 创建按 IP 的速率限制器。
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(15*time.Minute, 10*time.Minute),
		rate:     r,
		burst:    burst,
	}
}

// getLimiter 返回或创建指定IP的速率限制器
func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	if x, found := l.limiters.Get(ip); found {
		return x.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters.Set(ip, limiter, cache.DefaultExpiration)
	return limiter
}

// Middleware 返回限速的Gin中间件。
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := l.getLimiter(c.ClientIP())
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "请求过于频繁，请稍后再试",
			})
			return
		}
		c.Next()
	}
}
