// Package middleware holds the HTTP middleware applied in front of the
// command intake endpoints.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

// RateLimit returns a fixed-window limiter keyed by client IP and route,
// counted in Redis so the limit holds across replicas.  The limiter fails
// open: a Redis error lets the request through rather than taking the
// write path down with the cache.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			window := time.Now().Unix() / int64(cfg.Window.Seconds())
			key := fmt.Sprintf("%s:%s:%s:%d", cfg.Prefix, c.RealIP(), c.Path(), window)

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				_ = rdb.Expire(ctx, key, cfg.Window).Err()
			}
			if n > int64(cfg.Limit) {
				retry := cfg.Window - time.Duration(time.Now().Unix()%int64(cfg.Window.Seconds()))*time.Second
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
