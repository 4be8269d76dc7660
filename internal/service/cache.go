// cache.go — кэш вариантов фильтров списка заявок (позиции и статусы).
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	filterCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nk_filter_cache_hits_total",
		Help: "Общее количество попаданий в кэш вариантов фильтров.",
	})
	filterCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nk_filter_cache_misses_total",
		Help: "Общее количество промахов кэша вариантов фильтров.",
	})
)

const filterOptionsKey = "filters"

// FilterOptions — значения для выпадающих фильтров админ-панели.
type FilterOptions struct {
	Positions []string
	Statuses  []string
}

// FilterCache — in-memory кэш FilterOptions с TTL.
// Сбрасывается при любом изменении набора заявок.
type FilterCache struct {
	cache *expirable.LRU[string, *FilterOptions]
}

// NewFilterCache создаёт кэш с временем жизни записи ttl.
// ttl <= 0 отключает кэширование.
func NewFilterCache(ttl time.Duration) *FilterCache {
	if ttl <= 0 {
		return &FilterCache{}
	}
	return &FilterCache{cache: expirable.NewLRU[string, *FilterOptions](1, nil, ttl)}
}

// Get возвращает закэшированные варианты фильтров.
func (c *FilterCache) Get() (*FilterOptions, bool) {
	if c.cache == nil {
		return nil, false
	}
	val, ok := c.cache.Get(filterOptionsKey)
	if ok {
		filterCacheHitsTotal.Inc()
		return val, true
	}
	filterCacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет варианты фильтров.
func (c *FilterCache) Set(opts *FilterOptions) {
	if c.cache == nil {
		return
	}
	c.cache.Add(filterOptionsKey, opts)
}

// Invalidate сбрасывает кэш.
func (c *FilterCache) Invalidate() {
	if c.cache == nil {
		return
	}
	c.cache.Remove(filterOptionsKey)
}
