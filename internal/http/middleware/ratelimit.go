package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pong_arena/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var (
	rdb      *redis.Client
	limitRPS int
)

// InitRedisRateLimiter поднимает клиент redis для лимитера. Пустой
// адрес выключает лимитер целиком.
func InitRedisRateLimiter(addr, password string, rps int) {
	if addr == "" {
		logger.Warn("REDIS_ADDR не задан, rate limiter выключен")
		return
	}
	if rps <= 0 {
		rps = 20
	}
	limitRPS = rps
	rdb = redis.NewClient(&redis.Options{Addr: addr, Password: password})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis недоступен, rate limiter выключен", "error", err)
		rdb = nil
		return
	}
	logger.Info("rate limiter включен", "rps", rps)
}

// RateLimit - фиксированное окно в одну секунду на пользователя через
// INCR+EXPIRE. Если redis упал, пропускаем запросы: лимитер защищает
// от шума, а не работает рубильником доступности.
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}
		userID, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		key := fmt.Sprintf("rl:%d:%d", userID, time.Now().Unix())
		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		pipe := rdb.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 2*time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			c.Next()
			return
		}

		if incr.Val() > int64(limitRPS) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "RateLimited",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}

// внутренняя ручка для тестов
func resetRateLimiter() {
	rdb = nil
	limitRPS = 0
}
