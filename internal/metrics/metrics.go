// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_bars_processed_total", Help: "Closed bars accepted and folded into detector state"},
		[]string{"contract", "timeframe"},
	)
	BarsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_bars_rejected_total", Help: "Bars rejected by validation, by reason"},
		[]string{"contract", "timeframe", "reason"},
	)
	BarsOutOfOrder = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_bars_out_of_order_total", Help: "Bars at or below the watermark, rejected without processing"},
		[]string{"contract", "timeframe"},
	)
	SignalsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_signals_confirmed_total", Help: "Trend start signals persisted for the first time"},
		[]string{"contract", "timeframe", "type", "rule"},
	)
	SignalsDuplicate = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_signals_duplicate_total", Help: "Replayed confirmations deduplicated by the store"},
		[]string{"contract", "timeframe"},
	)
	StorageRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_storage_retries_total", Help: "Storage operation retries, by operation"},
		[]string{"op"},
	)
	WorkersHalted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trendstart_workers_halted_total", Help: "Stream workers halted by fatal errors, by reason"},
		[]string{"reason"},
	)
	WatermarkBarIndex = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "trendstart_watermark_bar_index", Help: "Index of the last processed bar per stream"},
		[]string{"contract", "timeframe"},
	)
)

func init() {
	prometheus.MustRegister(
		BarsProcessed,
		BarsRejected,
		BarsOutOfOrder,
		SignalsConfirmed,
		SignalsDuplicate,
		StorageRetries,
		WorkersHalted,
		WatermarkBarIndex,
	)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
