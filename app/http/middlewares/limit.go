package middlewares

import (
	"sync"
	"time"

	"zufang/pkg/app"
	"zufang/pkg/limiter"
	"zufang/pkg/logger"
	"zufang/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"
)

const (
	// DefaultBurst 默认突发请求数量
	DefaultBurst = 100
)

// 限流器的并发安全缓存
var (
	limiters    sync.Map
	lastCleanup sync.Map
	cleanupOnce sync.Once
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Limit string
	Burst int
}

// LimitIP 针对 IP 的限流中间件
//
// 支持的限流格式:
// - 5 reqs/second:   "5-S"
// - 10 reqs/minute:  "10-M"
// - 1000 reqs/hour:  "1000-H"
// - 2000 reqs/day:   "2000-D"
func LimitIP(limit string) gin.HandlerFunc {
	// 测试环境使用较大限制
	if app.IsTesting() {
		limit = "1000000-H"
	}

	return createLimiterHandler(func(c *gin.Context) string {
		return limiter.GetKeyIP(c)
	}, RateLimitConfig{Limit: limit, Burst: DefaultBurst})
}

// LimitPerRoute 针对单个路由（IP + 路由路径）的限流中间件
func LimitPerRoute(limit string) gin.HandlerFunc {
	if app.IsTesting() {
		limit = "1000000-H"
	}

	return createLimiterHandler(func(c *gin.Context) string {
		return limiter.GetKeyRouteWithIP(c)
	}, RateLimitConfig{Limit: limit, Burst: DefaultBurst})
}

// createLimiterHandler 创建限流处理器
func createLimiterHandler(keyFunc func(*gin.Context) string, config RateLimitConfig) gin.HandlerFunc {
	cleanupOnce.Do(func() {
		go cleanupLimiters()
	})

	return func(c *gin.Context) {
		key := keyFunc(c)

		lim, err := getLimiter(key, config)
		if err != nil {
			logger.ErrorString("限流器", "创建失败", err.Error())
			// 降级处理：允许请求通过
			c.Next()
			return
		}

		if !lim.Allow() {
			response.JSON(c, gin.H{
				"code":    429,
				"message": "请求太频繁，请稍后再试",
				"error":   "Too Many Requests",
			})
			c.Abort()
			return
		}

		lastCleanup.Store(key, time.Now())
		setRateLimitHeaders(c, lim)
		c.Next()
	}
}

// getLimiter 获取或创建限流器
func getLimiter(key string, config RateLimitConfig) (*rate.Limiter, error) {
	if lim, exists := limiters.Load(key); exists {
		return lim.(*rate.Limiter), nil
	}

	r, err := limiter.ParseLimit(config.Limit)
	if err != nil {
		return nil, err
	}

	lim := rate.NewLimiter(rate.Limit(r.Rate), config.Burst)
	actual, _ := limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter), nil
}

// setRateLimitHeaders 设置限流相关的响应头
func setRateLimitHeaders(c *gin.Context, lim *rate.Limiter) {
	c.Header("X-RateLimit-Limit", cast.ToString(float64(lim.Limit())))
	c.Header("X-RateLimit-Remaining", cast.ToString(lim.Tokens()))
	c.Header("X-RateLimit-Reset", cast.ToString(time.Now().Add(time.Second).Unix()))
}

// cleanupLimiters 定期清理超过 24 小时未使用的限流器
func cleanupLimiters() {
	ticker := time.NewTicker(1 * time.Hour)
	for range ticker.C {
		now := time.Now()
		limiters.Range(func(key, value interface{}) bool {
			lastAccess, _ := lastCleanup.Load(key)
			if lastAccess == nil {
				lastCleanup.Store(key, now)
				return true
			}

			if now.Sub(lastAccess.(time.Time)) > 24*time.Hour {
				limiters.Delete(key)
				lastCleanup.Delete(key)
			}
			return true
		})
	}
}
