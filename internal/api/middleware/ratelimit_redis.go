package middleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript атомарно увеличивает счётчик и задаёт TTL окна при первом запросе.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// redisTimeout — предельное время обращения к Redis на один запрос.
const redisTimeout = 250 * time.Millisecond

// RedisLimiter — Limiter поверх Redis, общий для всех экземпляров портала.
// При недоступности Redis запросы пропускаются.
type RedisLimiter struct {
	client redis.Scripter
	script *redis.Script
	prefix string
}

// NewRedisLimiter создаёт ограничитель. nil client — nil limiter.
func NewRedisLimiter(client redis.Scripter) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
		prefix: "nk:ratelimit:",
	}
}

// Allow учитывает запрос в Redis.
func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}
