package batch

import "github.com/VictoriaMetrics/metrics"

var (
	fetchTotal       = metrics.NewCounter(`dql_batch_fetch_total`)
	fetchErrorsTotal = metrics.NewCounter(`dql_batch_fetch_errors_total`)
	prefetchTotal    = metrics.NewCounter(`dql_batch_prefetch_total`)
	cacheHitsTotal   = metrics.NewCounter(`dql_batch_cache_hits_total`)
	cacheMissesTotal = metrics.NewCounter(`dql_batch_cache_misses_total`)
	evictionsTotal   = metrics.NewCounter(`dql_batch_evictions_total`)
	fetchDuration    = metrics.NewHistogram(`dql_batch_fetch_duration_seconds`)
)
