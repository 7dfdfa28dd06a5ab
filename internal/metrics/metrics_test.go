// internal/metrics/metrics_test.go
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv := Serve(":0")
	defer srv.Close()

	BarsProcessed.WithLabelValues("CON.F.US.MES.M25", "5m").Inc()
	SignalsConfirmed.WithLabelValues("CON.F.US.MES.M25", "5m", "uptrend_start", "containment_breakout").Inc()
	WatermarkBarIndex.WithLabelValues("CON.F.US.MES.M25", "5m").Set(42)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{
		"trendstart_bars_processed_total":    false,
		"trendstart_signals_confirmed_total": false,
		"trendstart_watermark_bar_index":     false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}
