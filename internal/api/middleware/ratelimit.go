// ratelimit.go — ограничение частоты запросов по ключу (обычно IP клиента).
// In-memory реализация для одного экземпляра; RedisLimiter — для нескольких.
package middleware

import (
	"net/http"
	"sync"
	"time"

	apierrors "github.com/nkrecruitment/portal/internal/api/errors"
)

// Limiter — счётчик запросов в фиксированном окне.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// RateLimiter — in-memory Limiter.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter создаёт in-memory ограничитель.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: time.Now}
}

// Allow учитывает запрос и сообщает, укладывается ли он в лимит.
func (r *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	bucket, ok := r.buckets[key]
	if !ok || now.After(bucket.windowEnd) {
		r.sweep(now)
		r.buckets[key] = &rateBucket{count: 1, windowEnd: now.Add(window)}
		return true
	}
	if bucket.count >= limit {
		return false
	}
	bucket.count++
	return true
}

// sweep удаляет истёкшие окна. Вызывается под мьютексом.
func (r *RateLimiter) sweep(now time.Time) {
	for k, b := range r.buckets {
		if now.After(b.windowEnd) {
			delete(r.buckets, k)
		}
	}
}

// RateLimit возвращает middleware, отклоняющий запросы сверх limit за window (429).
// prefix разделяет счётчики разных маршрутов. limit <= 0 отключает ограничение.
func RateLimit(limiter Limiter, prefix string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(prefix+":"+key, limit, window) {
				apierrors.TooManyRequests(w, "Слишком много запросов, повторите позже", window)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
