package observability

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"compounder/core/events"
)

type strategyMetrics struct {
	harvests     *prometheus.CounterVec
	harvestTime  prometheus.Histogram
	wantCreated  prometheus.Counter
	totalManaged prometheus.Gauge
	feesRouted   *prometheus.CounterVec
	secondary    prometheus.Counter
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	strategyMetricsOnce sync.Once
	strategyRegistry    *strategyMetrics

	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// Strategy returns the lazily-initialised registry tracking harvest activity.
func Strategy() *strategyMetrics {
	strategyMetricsOnce.Do(func() {
		strategyRegistry = &strategyMetrics{
			harvests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "harvests_total",
				Help:      "Completed harvest cycles segmented by trigger and outcome.",
			}, []string{"trigger", "outcome"}),
			harvestTime: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "harvest_duration_seconds",
				Help:      "Wall-clock duration of harvest cycles including chain settlement.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
			wantCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "want_created_wei_total",
				Help:      "Cumulative want minted by compounding, in wei.",
			}),
			totalManaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "total_managed_wei",
				Help:      "Want under management across local custody and the farm.",
			}),
			feesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "fees_routed_wei_total",
				Help:      "Native-denominated fees routed per recipient class.",
			}, []string{"recipient"}),
			secondary: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "strategy",
				Name:      "secondary_liquidity_wei_total",
				Help:      "Cumulative secondary-pair liquidity minted, in wei.",
			}),
		}
		prometheus.MustRegister(
			strategyRegistry.harvests,
			strategyRegistry.harvestTime,
			strategyRegistry.wantCreated,
			strategyRegistry.totalManaged,
			strategyRegistry.feesRouted,
			strategyRegistry.secondary,
		)
	})
	return strategyRegistry
}

// ObserveHarvest records one harvest attempt. Trigger should be a stable
// string such as "scheduler" or "rpc".
func (m *strategyMetrics) ObserveHarvest(trigger string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.harvests.WithLabelValues(trigger, outcome).Inc()
	m.harvestTime.Observe(duration.Seconds())
}

// SetTotalManaged updates the managed-assets gauge.
func (m *strategyMetrics) SetTotalManaged(total *big.Int) {
	if m == nil {
		return
	}
	m.totalManaged.Set(approxFloat(total))
}

// HTTP returns the registry tracking the admin API surface.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "compounder",
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total API errors segmented by route and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "compounder",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.errors, httpRegistry.latency)
	})
	return httpRegistry
}

// Observe records the outcome of an API request with the status ultimately
// written to the response writer.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// MetricsEmitter mirrors strategy events into the Prometheus registry so
// dashboards track compounding without scraping chain state.
type MetricsEmitter struct{}

// Emit implements events.Emitter.
func (MetricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	m := Strategy()
	switch payload.Type {
	case events.TypeHarvested:
		if v, ok := attrFloat(payload.Attributes, "wantCreatedWei"); ok {
			m.wantCreated.Add(v)
		}
		if v, ok := attrFloat(payload.Attributes, "totalManagedWei"); ok {
			m.totalManaged.Set(v)
		}
	case events.TypeDeposited, events.TypeWithdrawn:
		if v, ok := attrFloat(payload.Attributes, "totalManagedWei"); ok {
			m.totalManaged.Set(v)
		}
	case events.TypeTreasuryTransfer:
		if v, ok := attrFloat(payload.Attributes, "amountWei"); ok {
			m.feesRouted.WithLabelValues("treasury").Add(v)
		}
	case events.TypeSecondaryLiquidity:
		if v, ok := attrFloat(payload.Attributes, "liquidityWei"); ok {
			m.secondary.Add(v)
		}
	}
}

func attrFloat(attrs map[string]string, key string) (float64, bool) {
	raw, ok := attrs[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func approxFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
