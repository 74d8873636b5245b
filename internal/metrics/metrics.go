// Package metrics exposes Prometheus collectors for population generation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder groups the collectors. A nil *Recorder is valid and records
// nothing, which keeps the CLI free of metrics plumbing.
type Recorder struct {
	registry       *prometheus.Registry
	populations    *prometheus.CounterVec
	universes      prometheus.Counter
	buildDuration  *prometheus.HistogramVec
	emptySummaries prometheus.Counter
	cacheLookups   *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		populations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multiverse",
			Name:      "populations_generated_total",
			Help:      "Populations generated, by build mode.",
		}, []string{"mode"}),
		universes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multiverse",
			Name:      "universes_generated_total",
			Help:      "Parent and child universes generated.",
		}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multiverse",
			Name:      "population_build_seconds",
			Help:      "Time spent building a population.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"mode"}),
		emptySummaries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "multiverse",
			Name:      "empty_population_summaries_total",
			Help:      "Statistics requests rejected because the population had no children.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multiverse",
			Name:      "statistics_cache_lookups_total",
			Help:      "Statistics cache lookups, by result.",
		}, []string{"result"}),
	}

	r.registry.MustRegister(
		r.populations,
		r.universes,
		r.buildDuration,
		r.emptySummaries,
		r.cacheLookups,
		collectors.NewGoCollector(),
	)
	return r
}

func mode(parallel bool) string {
	if parallel {
		return "parallel"
	}
	return "sequential"
}

// PopulationBuilt records one finished build.
func (r *Recorder) PopulationBuilt(parallel bool, universes int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.populations.WithLabelValues(mode(parallel)).Inc()
	r.universes.Add(float64(universes))
	r.buildDuration.WithLabelValues(mode(parallel)).Observe(elapsed.Seconds())
}

func (r *Recorder) EmptySummary() {
	if r == nil {
		return
	}
	r.emptySummaries.Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
