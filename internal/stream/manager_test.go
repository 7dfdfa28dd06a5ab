// internal/stream/manager_test.go
package stream

import (
	"sync"
	"testing"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	events "github.com/burningportra/projectx-sub002/internal/transport/event_bus"
)

func rebrand(bs []bar.Bar, contract string) []bar.Bar {
	out := make([]bar.Bar, len(bs))
	for i, b := range bs {
		b.ContractID = contract
		out[i] = b
	}
	return out
}

func newKeyedProcessor(t *testing.T, key StreamKey, src BarSource, sink SignalSink, wms WatermarkStore, bus *events.EventBus) *Processor {
	t.Helper()
	p, err := NewProcessor(ProcessorConfig{
		Key:        key,
		Detector:   testDetector(t),
		Source:     src,
		Sink:       sink,
		Watermarks: wms,
		Events:     bus,
		Policy:     PolicyHalt,
		Retry:      fastRetry(),
	})
	if err != nil {
		t.Fatalf("NewProcessor(%s): %v", key, err)
	}
	return p
}

func TestManagerIsolatesHaltedStream(t *testing.T) {
	wms := newMemWatermarks()
	goodSink := newMemSink()
	badSink := newMemSink()

	goodKey := testKey()
	badKey := StreamKey{AnalyzerID: testAnalyzer, ContractID: "CON.F.US.ENQ.M25", Timeframe: testTimeframe}

	badBars := rebrand(waveBars()[:3], badKey.ContractID)
	corrupt := mkBar(4, 99, 97, 99.5, 98)
	corrupt.ContractID = badKey.ContractID
	badBars = append(badBars, corrupt)

	m := NewManager(nil)
	if err := m.Add(newKeyedProcessor(t, goodKey, &sliceSource{bars: waveBars()}, goodSink, wms, nil)); err != nil {
		t.Fatalf("Add good: %v", err)
	}
	if err := m.Add(newKeyedProcessor(t, badKey, &sliceSource{bars: badBars}, badSink, wms, nil)); err != nil {
		t.Fatalf("Add bad: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()
	defer m.Stop()

	// Битый поток остановлен, здоровый дошел до конца
	halted := m.Halted()
	if len(halted) != 1 {
		t.Fatalf("expected 1 halted stream, got %d: %v", len(halted), halted)
	}
	if _, ok := halted[badKey.String()]; !ok {
		t.Fatalf("expected %s halted, got %v", badKey, halted)
	}
	if goodSink.count() != 2 {
		t.Fatalf("healthy stream must finish with 2 signals, got %d", goodSink.count())
	}
	goodWM, _ := wms.get(goodKey)
	if goodWM.BarIndex != 8 {
		t.Fatalf("healthy stream watermark must reach 8, got %d", goodWM.BarIndex)
	}
	badWM, _ := wms.get(badKey)
	if badWM.BarIndex != 3 {
		t.Fatalf("halted stream watermark must stay at 3, got %d", badWM.BarIndex)
	}
}

func TestManagerRejectsDuplicateKey(t *testing.T) {
	wms := newMemWatermarks()
	m := NewManager(nil)
	if err := m.Add(newKeyedProcessor(t, testKey(), &sliceSource{}, newMemSink(), wms, nil)); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := m.Add(newKeyedProcessor(t, testKey(), &sliceSource{}, newMemSink(), wms, nil)); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestManagerRejectsAddAfterStart(t *testing.T) {
	wms := newMemWatermarks()
	m := NewManager(nil)
	if err := m.Add(newKeyedProcessor(t, testKey(), &sliceSource{}, newMemSink(), wms, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()
	m.Wait()

	other := StreamKey{AnalyzerID: testAnalyzer, ContractID: "CON.F.US.ENQ.M25", Timeframe: testTimeframe}
	if err := m.Add(newKeyedProcessor(t, other, &sliceSource{}, newMemSink(), wms, nil)); err == nil {
		t.Fatalf("expected error adding after start")
	}
}

func TestManagerStartWithoutStreams(t *testing.T) {
	m := NewManager(nil)
	if err := m.Start(); err == nil {
		t.Fatalf("expected error starting empty manager")
	}
}

type recordingSubscriber struct {
	mu     sync.Mutex
	seen   []events.Event
	wanted []events.EventType
}

func (r *recordingSubscriber) HandleEvent(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e)
	return nil
}

func (r *recordingSubscriber) GetName() string { return "recorder" }

func (r *recordingSubscriber) GetSubscribedEvents() []events.EventType { return r.wanted }

func (r *recordingSubscriber) countByType() map[events.EventType]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[events.EventType]int)
	for _, e := range r.seen {
		out[e.Type]++
	}
	return out
}

func TestManagerPublishesLifecycleEvents(t *testing.T) {
	bus := events.NewEventBus(events.EventBusConfig{BufferSize: 64, WorkerCount: 1})
	rec := &recordingSubscriber{wanted: []events.EventType{
		events.EventSignalConfirmed,
		events.EventWorkerHalted,
		events.EventStreamStarted,
		events.EventStreamFinished,
		events.EventBarRejected,
	}}
	for _, et := range rec.wanted {
		bus.Subscribe(et, rec)
	}
	bus.Start()

	wms := newMemWatermarks()
	goodKey := testKey()
	badKey := StreamKey{AnalyzerID: testAnalyzer, ContractID: "CON.F.US.ENQ.M25", Timeframe: testTimeframe}
	badBars := rebrand(waveBars()[:3], badKey.ContractID)
	corrupt := mkBar(4, 99, 97, 99.5, 98)
	corrupt.ContractID = badKey.ContractID
	badBars = append(badBars, corrupt)

	m := NewManager(bus)
	if err := m.Add(newKeyedProcessor(t, goodKey, &sliceSource{bars: waveBars()}, newMemSink(), wms, bus)); err != nil {
		t.Fatalf("Add good: %v", err)
	}
	if err := m.Add(newKeyedProcessor(t, badKey, &sliceSource{bars: badBars}, newMemSink(), wms, bus)); err != nil {
		t.Fatalf("Add bad: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	m.Wait()
	m.Stop()
	// Stop шины добирает буфер, после него все события доставлены
	bus.Stop()

	counts := rec.countByType()
	if counts[events.EventStreamStarted] != 2 {
		t.Fatalf("expected 2 stream_started, got %d", counts[events.EventStreamStarted])
	}
	if counts[events.EventSignalConfirmed] != 2 {
		t.Fatalf("expected 2 signal_confirmed, got %d", counts[events.EventSignalConfirmed])
	}
	if counts[events.EventWorkerHalted] != 1 {
		t.Fatalf("expected 1 worker_halted, got %d", counts[events.EventWorkerHalted])
	}
	if counts[events.EventStreamFinished] != 1 {
		t.Fatalf("expected 1 stream_finished, got %d", counts[events.EventStreamFinished])
	}
	if counts[events.EventBarRejected] != 1 {
		t.Fatalf("expected 1 bar_rejected, got %d", counts[events.EventBarRejected])
	}
}
