// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	tradeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curved_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"side", "status"},
	)
	tradeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curved_trade_duration_seconds",
			Help:    "Duration of trade submission and confirmation",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		},
	)
	quoteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curved_quotes_total",
			Help: "Total number of quotes served",
		},
		[]string{"side", "status"},
	)
	poolsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curved_pools_registered",
			Help: "Number of pools registered in the factory",
		},
	)
)

func init() {
	prometheus.MustRegister(tradeCounter)
	prometheus.MustRegister(tradeDuration)
	prometheus.MustRegister(quoteCounter)
	prometheus.MustRegister(poolsGauge)
}

// MeasureTrade runs f, times it and records the outcome under the side label.
func MeasureTrade(side string, f func() error) error {
	start := time.Now()
	err := f()
	tradeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		tradeCounter.WithLabelValues(side, "failed").Inc()
	} else {
		tradeCounter.WithLabelValues(side, "success").Inc()
	}
	return err
}

// RecordQuote counts one served or failed quote.
func RecordQuote(side string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	quoteCounter.WithLabelValues(side, status).Inc()
}

// SetPoolCount mirrors the factory registry size.
func SetPoolCount(n int) {
	poolsGauge.Set(float64(n))
}
