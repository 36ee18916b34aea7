package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillCalculationsTotal counts bill calculations by source and outcome.
	BillCalculationsTotal *prometheus.CounterVec
	// BillCallsTotal counts call records by how the calculation treated them.
	BillCallsTotal *prometheus.CounterVec
	// BillCacheTotal counts result cache lookups.
	BillCacheTotal *prometheus.CounterVec
	// BillJobsTotal counts asynchronous bill jobs by outcome.
	BillJobsTotal *prometheus.CounterVec
	// BillCalculationLatency records pipeline latency in milliseconds.
	BillCalculationLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers billing Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_calculations_total",
			Help:      "Count of bill calculations by source and result.",
		}, []string{"source", "result"})
		BillCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_calls_total",
			Help:      "Count of call records by treatment (billed, free, skipped).",
		}, []string{"kind"})
		BillCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_cache_total",
			Help:      "Count of bill result cache lookups.",
		}, []string{"result"})
		BillJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_jobs_total",
			Help:      "Count of asynchronous bill jobs by result.",
		}, []string{"result"})
		BillCalculationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_calculation_duration_ms",
			Help:      "Latency of the bill pipeline in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		})

		mustRegisterCollector(reg, BillCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillCalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, BillCallsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillCallsTotal = v
			}
		})
		mustRegisterCollector(reg, BillCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillCacheTotal = v
			}
		})
		mustRegisterCollector(reg, BillJobsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillJobsTotal = v
			}
		})
		mustRegisterCollector(reg, BillCalculationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				BillCalculationLatency = v
			}
		})
	})
}

// ObserveBill records the outcome of a calculation. It is a no-op until
// MustRegisterDomainMetrics has run.
func ObserveBill(source, result string, billed, free, skipped int, millis float64) {
	if BillCalculationsTotal == nil {
		return
	}
	BillCalculationsTotal.WithLabelValues(source, result).Inc()
	BillCalculationLatency.Observe(millis)
	if result != "ok" {
		return
	}
	BillCallsTotal.WithLabelValues("billed").Add(float64(billed))
	BillCallsTotal.WithLabelValues("free").Add(float64(free))
	BillCallsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveCache records a cache lookup result (hit, miss, error).
func ObserveCache(result string) {
	if BillCacheTotal == nil {
		return
	}
	BillCacheTotal.WithLabelValues(result).Inc()
}

// ObserveJob records an asynchronous job result.
func ObserveJob(result string) {
	if BillJobsTotal == nil {
		return
	}
	BillJobsTotal.WithLabelValues(result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
