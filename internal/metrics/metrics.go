package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "provider_requests_total",
			Help:      "Total analyzer requests by provider and result",
		},
		[]string{"provider", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cardforge",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of analyzer requests by provider",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	chunksAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "chunks_analyzed_total",
			Help:      "Chunks analyzed by the provider that finally served them",
		},
		[]string{"provider"},
	)

	downgrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "provider_downgrades_total",
			Help:      "Fallback transitions by from/to provider",
		},
		[]string{"from", "to"},
	)

	cardsDrafted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "cards_drafted_total",
			Help:      "Draft cards produced by providers before the quality gate",
		},
	)

	cardsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "cards_accepted_total",
			Help:      "Cards that passed the quality gate and deck assembly",
		},
	)

	cardsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "cards_rejected_total",
			Help:      "Cards discarded, labeled by reason",
		},
		[]string{"reason"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "jobs_total",
			Help:      "Generation jobs by final result (done, failed)",
		},
		[]string{"result"},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cardforge",
			Name:      "jobs_active",
			Help:      "Generation jobs currently running",
		},
	)

	breakerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cardforge",
			Name:      "breaker_events_total",
			Help:      "Provider cooldown breaker events by provider and action",
		},
		[]string{"provider", "action"},
	)
)

var registerOnce sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			providerReqs, providerLatency, chunksAnalyzed, downgrades,
			cardsDrafted, cardsAccepted, cardsRejected,
			jobsTotal, jobsActive, breakerEvents,
		)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveProvider(provider, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, result).Inc()
	providerLatency.WithLabelValues(provider).Observe(dur.Seconds())
}

func IncChunkAnalyzed(provider string)  { chunksAnalyzed.WithLabelValues(provider).Inc() }
func IncDowngrade(from, to string)      { downgrades.WithLabelValues(from, to).Inc() }
func AddDrafted(n int)                  { cardsDrafted.Add(float64(n)) }
func AddAccepted(n int)                 { cardsAccepted.Add(float64(n)) }
func IncRejected(reason string)         { cardsRejected.WithLabelValues(reason).Inc() }
func IncJob(result string)              { jobsTotal.WithLabelValues(result).Inc() }
func JobStarted()                       { jobsActive.Inc() }
func JobFinished()                      { jobsActive.Dec() }
func BreakerOpened(provider string)     { breakerEvents.WithLabelValues(provider, "opened").Inc() }
func BreakerClosed(provider string)     { breakerEvents.WithLabelValues(provider, "closed").Inc() }
