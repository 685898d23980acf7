package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus instrumentation a Manager can optionally
// report through, modeled on IvanBrykalov/shardcache's metrics/prom
// adapter. A nil *Metrics is valid everywhere a Manager accepts one: every
// method below is a nil-safe no-op, so metrics stay entirely optional.
type Metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	storeLoads   prometheus.Counter
	cacheEvicts  prometheus.Counter
	weakHits     prometheus.Counter
	takeOwned    prometheus.Counter
	takeCloned   prometheus.Counter
}

// NewMetrics registers a fresh set of Node Manager metrics with reg under
// the given namespace/subsystem. If reg is nil, prometheus.DefaultRegisterer
// is used.
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}
	return &Metrics{
		cacheHits:   counter("cache_hits_total", "Node Manager cache hits (live cached_weak pointer or LRU cache)"),
		cacheMisses: counter("cache_misses_total", "Node Manager LRU cache misses"),
		storeLoads:  counter("store_loads_total", "Nodes loaded from the backing Node Store"),
		cacheEvicts: counter("cache_evictions_total", "Node Manager LRU cache evictions"),
		weakHits:    counter("weak_cache_hits_total", "Resolutions served by a live cached_weak pointer"),
		takeOwned:   counter("take_or_clone_owned_total", "take_or_clone calls returning unique ownership"),
		takeCloned:  counter("take_or_clone_cloned_total", "take_or_clone calls returning a clone"),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) storeLoad() {
	if m != nil {
		m.storeLoads.Inc()
	}
}

func (m *Metrics) evict() {
	if m != nil {
		m.cacheEvicts.Inc()
	}
}

func (m *Metrics) weakHit() {
	if m != nil {
		m.weakHits.Inc()
	}
}

func (m *Metrics) owned() {
	if m != nil {
		m.takeOwned.Inc()
	}
}

func (m *Metrics) cloned() {
	if m != nil {
		m.takeCloned.Inc()
	}
}
