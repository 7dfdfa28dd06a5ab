// internal/core/domain/trend/detector_test.go
package trend

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
)

func testConfig() config.DetectorConfig {
	cfg := config.NewConfig()
	cfg.Lookback = 3
	cfg.ToleranceFrac = 0.25
	cfg.MinInsideBars = 2
	cfg.MomentumMinFrac = 0.01
	cfg.MomentumByTimeframe = nil
	return cfg
}

func testDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector("trend_start", testConfig())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func mkBar(idx int64, o, h, l, c float64) bar.Bar {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return bar.Bar{
		ContractID: "CON.F.US.MES.M25",
		Timeframe:  "5m",
		Index:      idx,
		Timestamp:  base.Add(time.Duration(idx) * 5 * time.Minute),
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
	}
}

func stepAll(t *testing.T, d *Detector, st PivotState, bars []bar.Bar) (PivotState, []*TrendSignal) {
	t.Helper()
	var signals []*TrendSignal
	for _, b := range bars {
		var sig *TrendSignal
		var err error
		st, sig, err = d.Step(st, b)
		if err != nil {
			t.Fatalf("Step(bar %d): %v", b.Index, err)
		}
		if sig != nil {
			signals = append(signals, sig)
		}
	}
	return st, signals
}

// Падающая серия, дающая кандидата вверх на баре 4:
// low 97.5 ниже минимумов последних трех баров, close 98 ниже close бара 1.
func decliningBars() []bar.Bar {
	return []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 99, 99.2, 97.5, 98),
	}
}

func TestCandidateFormation(t *testing.T) {
	d := testDetector(t)
	st, signals := stepAll(t, d, d.NewState(), decliningBars())

	if len(signals) != 0 {
		t.Fatalf("expected no signals during formation, got %d", len(signals))
	}
	if st.Up.Phase != PhasePending {
		t.Fatalf("expected up track pending, got %s", st.Up.Phase)
	}
	if got := st.Up.Candidate.AnchorIndex(); got != 4 {
		t.Fatalf("expected anchor at bar 4, got %d", got)
	}
	if st.Down.Phase != PhaseNone {
		t.Fatalf("expected down track empty, got %s", st.Down.Phase)
	}
}

func TestShortHistoryEmitsNothing(t *testing.T) {
	d := testDetector(t)
	// Меньше Lookback баров истории: окно неполное, кандидатов нет,
	// даже если бар сам по себе экстремальный.
	st, signals := stepAll(t, d, d.NewState(), []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 99, 99.5, 95, 95.5),
		mkBar(3, 95.5, 96, 90, 91),
	})
	if len(signals) != 0 {
		t.Fatalf("expected no signals on short history, got %d", len(signals))
	}
	if st.Up.Phase != PhaseNone || st.Down.Phase != PhaseNone {
		t.Fatalf("expected both tracks empty, got up=%s down=%s", st.Up.Phase, st.Down.Phase)
	}
}

func TestCandidateSupersession(t *testing.T) {
	d := testDetector(t)
	bars := append(decliningBars(), mkBar(5, 98, 98.5, 97, 97.8))
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
	if got := st.Up.Candidate.AnchorIndex(); got != 5 {
		t.Fatalf("expected anchor to slide to bar 5, got %d", got)
	}
	if st.Up.Phase != PhasePending {
		t.Fatalf("expected pending after supersession, got %s", st.Up.Phase)
	}
}

func TestSupersessionResetsContainment(t *testing.T) {
	d := testDetector(t)
	bars := append(decliningBars(),
		// Бар внутри диапазона якоря 4 открывает зону
		mkBar(5, 98, 99.0, 97.8, 98.4),
		// Новый минимум перехватывает якорь, зона сбрасывается
		mkBar(6, 98.4, 98.6, 97.4, 97.9),
	)
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
	if got := st.Up.Candidate.AnchorIndex(); got != 6 {
		t.Fatalf("expected anchor at bar 6, got %d", got)
	}
	if st.Up.Phase != PhasePending || st.Up.Containment != nil {
		t.Fatalf("expected containment dropped, got phase=%s containment=%v", st.Up.Phase, st.Up.Containment)
	}
}

func TestContainmentBreakoutConfirmsUptrend(t *testing.T) {
	d := testDetector(t)
	// Якорь на баре 4: диапазон [97.6, 99.2], допуск 0.25*1.6=0.4,
	// верх зоны 99.6. Два бара внутри, пробой на баре 7.
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 98.8, 99.2, 97.6, 98),
		mkBar(5, 98, 99.0, 97.8, 98.4),
		mkBar(6, 98.4, 99.1, 97.9, 98.6),
		mkBar(7, 98.6, 100.2, 98.5, 100.0),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != UptrendStart {
		t.Fatalf("expected uptrend_start, got %s", sig.Type)
	}
	if sig.RuleName != RuleContainmentBreakout {
		t.Fatalf("expected rule %s, got %s", RuleContainmentBreakout, sig.RuleName)
	}
	if sig.BarIndex != 4 {
		t.Fatalf("signal must carry the anchor bar index 4, got %d", sig.BarIndex)
	}
	if sig.Price != 98 {
		t.Fatalf("signal price must be anchor close 98, got %f", sig.Price)
	}
	if sig.TriggerIndex != 7 {
		t.Fatalf("expected trigger at bar 7, got %d", sig.TriggerIndex)
	}
	if sig.OHLCV.Low != 97.6 || sig.OHLCV.High != 99.2 {
		t.Fatalf("signal OHLCV must snapshot the anchor bar, got %+v", sig.OHLCV)
	}
	if got := sig.Details["inside_bars"]; got != 2 {
		t.Fatalf("expected 2 inside bars in details, got %v", got)
	}

	if st.Up.Phase != PhaseNone || st.Down.Phase != PhaseNone {
		t.Fatalf("confirmation must clear both tracks, got up=%s down=%s", st.Up.Phase, st.Down.Phase)
	}
	if st.LastConfirmedType != UptrendStart || st.LastConfirmedIndex != 4 {
		t.Fatalf("unexpected confirmation record: type=%s index=%d", st.LastConfirmedType, st.LastConfirmedIndex)
	}
}

func TestContainmentBreakoutConfirmsDowntrend(t *testing.T) {
	d := testDetector(t)
	// Зеркальный сценарий: якорь вниз на баре 4 с диапазоном
	// [100.8, 102.4], допуск 0.4, низ зоны 100.4.
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100.5, 101.5, 99.5, 101),
		mkBar(3, 101, 102, 100, 101.5),
		mkBar(4, 101.5, 102.4, 100.8, 102),
		mkBar(5, 102, 102.2, 101, 101.5),
		mkBar(6, 101.5, 102.3, 100.9, 101.2),
		mkBar(7, 101.2, 101.3, 100.2, 100.5),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != DowntrendStart {
		t.Fatalf("expected downtrend_start, got %s", sig.Type)
	}
	if sig.RuleName != RuleContainmentBreakout {
		t.Fatalf("expected rule %s, got %s", RuleContainmentBreakout, sig.RuleName)
	}
	if sig.BarIndex != 4 || sig.Price != 102 {
		t.Fatalf("expected anchor bar 4 close 102, got index=%d price=%f", sig.BarIndex, sig.Price)
	}
	if st.LastConfirmedType != DowntrendStart {
		t.Fatalf("expected downtrend recorded, got %s", st.LastConfirmedType)
	}
}

func TestContainmentMinimumInsideBars(t *testing.T) {
	d := testDetector(t)
	// Пробой после одного бара внутри зоны: минимум не набран,
	// пробой не подтверждает, а momentum-путь не срабатывает,
	// потому что close не пересек high якоря.
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 98.8, 99.2, 97.6, 98),
		mkBar(5, 98, 99.0, 97.8, 98.4),
		mkBar(6, 98.4, 100.2, 98.3, 99.0),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 0 {
		t.Fatalf("breakout with too few inside bars must not confirm, got %d signals", len(signals))
	}
	if st.Up.Phase != PhasePending {
		t.Fatalf("expected candidate back to pending, got %s", st.Up.Phase)
	}
	if st.Up.Containment != nil {
		t.Fatalf("expected containment closed, got %+v", st.Up.Containment)
	}
	if got := st.Up.Candidate.AnchorIndex(); got != 4 {
		t.Fatalf("candidate must survive the failed breakout, got anchor %d", got)
	}
}

func TestDirectMomentumConfirmation(t *testing.T) {
	d := testDetector(t)
	// Бар 5 не лежит в зоне (high выше верха зоны 99.6), кандидат
	// остается pending. Close 99.3 пересекает high якоря 99.2,
	// импульс (99.3-98)/98 = 1.33% выше порога 1%.
	bars := append(decliningBars(), mkBar(5, 98, 99.7, 97.9, 99.3))
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.RuleName != RuleDirectMomentum {
		t.Fatalf("expected rule %s, got %s", RuleDirectMomentum, sig.RuleName)
	}
	if sig.Type != UptrendStart || sig.BarIndex != 4 || sig.TriggerIndex != 5 {
		t.Fatalf("unexpected signal: type=%s anchor=%d trigger=%d", sig.Type, sig.BarIndex, sig.TriggerIndex)
	}
	if st.Up.Phase != PhaseNone || st.Down.Phase != PhaseNone {
		t.Fatalf("confirmation must clear both tracks")
	}
}

func TestMomentumBelowThresholdDoesNotConfirm(t *testing.T) {
	d := testDetector(t)
	// Бар 6 пересекает high якоря, но импульс к close бара 5 всего
	// 0.2%. Подтверждение приходит баром 7 с импульсом 1.1%.
	bars := append(decliningBars(),
		mkBar(5, 98, 99.7, 97.9, 99.1),
		mkBar(6, 99.1, 99.8, 98.9, 99.3),
	)
	st, signals := stepAll(t, d, d.NewState(), bars)
	if len(signals) != 0 {
		t.Fatalf("weak momentum must not confirm, got %d signals", len(signals))
	}
	if st.Up.Phase != PhasePending || st.Up.Candidate.AnchorIndex() != 4 {
		t.Fatalf("candidate must stay pending at anchor 4")
	}

	st, signals = stepAll(t, d, st, []bar.Bar{mkBar(7, 99.3, 100.5, 99.2, 100.4)})
	if len(signals) != 1 {
		t.Fatalf("expected confirmation on bar 7, got %d signals", len(signals))
	}
	if signals[0].TriggerIndex != 7 || signals[0].RuleName != RuleDirectMomentum {
		t.Fatalf("unexpected signal: %+v", signals[0])
	}
}

// Волна из восьми баров: подтвержденный аптренд, подавленное повторное
// подтверждение того же типа и затем даунтренд. Проверяет чередование,
// очистку треков и лимит одной активной зоны.
func TestAlternationWave(t *testing.T) {
	d := testDetector(t)
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 99, 99.2, 97.6, 98),
		// momentum-подтверждение аптренда: якорь 4, триггер 5
		mkBar(5, 98, 99.7, 97.9, 99.3),
		// новый кандидат вверх на свежем минимуме
		mkBar(6, 99.3, 99.4, 97.5, 98.5),
		// momentum-условия для второго аптренда выполнены, но тип
		// совпадает с последним подтвержденным и сигнал подавлен;
		// одновременно формируется кандидат вниз на high 99.9
		mkBar(7, 98.5, 99.9, 98.4, 99.6),
		// даунтренд: close 98.3 ниже low якоря 98.4, импульс 1.3%
		mkBar(8, 99.6, 99.7, 98.1, 98.3),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
	first, second := signals[0], signals[1]
	if first.Type != UptrendStart || first.BarIndex != 4 || first.TriggerIndex != 5 {
		t.Fatalf("unexpected first signal: %+v", first)
	}
	if second.Type != DowntrendStart || second.BarIndex != 7 || second.TriggerIndex != 8 {
		t.Fatalf("unexpected second signal: %+v", second)
	}
	if first.BarIndex >= second.BarIndex {
		t.Fatalf("signals must be ordered by anchor index: %d, %d", first.BarIndex, second.BarIndex)
	}
	if st.LastConfirmedType != DowntrendStart || st.LastConfirmedIndex != 7 {
		t.Fatalf("unexpected confirmation record: type=%s index=%d", st.LastConfirmedType, st.LastConfirmedIndex)
	}
	if st.Up.Phase != PhaseNone || st.Down.Phase != PhaseNone {
		t.Fatalf("confirmation must clear both tracks")
	}
}

// Полная волна из 15 баров: пять вниз, затем пять вверх и снова пять вниз.
// Ровно два сигнала: аптренд с якорем на минимуме первой пятерки
// и даунтренд с якорем на максимуме последней, в этом порядке.
func TestFullWaveDownUpDown(t *testing.T) {
	d := testDetector(t)
	bars := []bar.Bar{
		// Падение: кандидат вверх на баре 4, бар 5 перехватывает якорь
		mkBar(1, 100, 100.4, 99.5, 99.7),
		mkBar(2, 99.7, 99.9, 99.1, 99.3),
		mkBar(3, 99.3, 99.5, 98.7, 98.9),
		mkBar(4, 98.9, 99.1, 98.3, 98.5),
		mkBar(5, 98.5, 98.7, 97.9, 98.1),
		// Рост: бар 6 подтверждает аптренд импульсом 1.12%,
		// с бара 7 формируется кандидат вниз и едет за максимумами
		mkBar(6, 98.1, 99.3, 98, 99.2),
		mkBar(7, 99.2, 100.2, 99.1, 100),
		mkBar(8, 100, 101.1, 99.9, 100.9),
		mkBar(9, 100.9, 102, 100.8, 101.8),
		mkBar(10, 101.8, 102.9, 101.7, 102.7),
		// Разворот: бар 11 ставит вершину волны и перехватывает якорь,
		// бар 12 подтверждает даунтренд импульсом 1.07%
		mkBar(11, 102.7, 103.3, 102.2, 102.4),
		mkBar(12, 102.4, 102.6, 101.1, 101.3),
		mkBar(13, 101.3, 101.5, 100.2, 100.4),
		mkBar(14, 100.4, 100.6, 99.2, 99.4),
		mkBar(15, 99.4, 99.6, 98.2, 98.4),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 2 {
		t.Fatalf("expected exactly 2 signals, got %d", len(signals))
	}
	up, down := signals[0], signals[1]
	if up.Type != UptrendStart || up.BarIndex != 5 || up.TriggerIndex != 6 {
		t.Fatalf("unexpected uptrend signal: %+v", up)
	}
	if up.Price != 98.1 || up.OHLCV.Low != 97.9 {
		t.Fatalf("uptrend must anchor at the wave low: price=%v low=%v", up.Price, up.OHLCV.Low)
	}
	if down.Type != DowntrendStart || down.BarIndex != 11 || down.TriggerIndex != 12 {
		t.Fatalf("unexpected downtrend signal: %+v", down)
	}
	if down.Price != 102.4 || down.OHLCV.High != 103.3 {
		t.Fatalf("downtrend must anchor at the wave high: price=%v high=%v", down.Price, down.OHLCV.High)
	}
	if st.LastConfirmedType != DowntrendStart || st.LastConfirmedIndex != 11 {
		t.Fatalf("unexpected confirmation record: type=%s index=%d", st.LastConfirmedType, st.LastConfirmedIndex)
	}
	// Хвост волны оставляет свежего кандидата вверх, без подтверждения
	if st.Up.Phase != PhasePending || st.Up.Candidate.AnchorIndex() != 15 {
		t.Fatalf("tail must leave a pending up candidate at bar 15, got %+v", st.Up)
	}
	if st.Down.Phase != PhaseNone {
		t.Fatalf("down track must be clear, got %s", st.Down.Phase)
	}
}

func TestSuppressedSignalKeepsState(t *testing.T) {
	d := testDetector(t)
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 99, 99.2, 97.6, 98),
		mkBar(5, 98, 99.7, 97.9, 99.3),
		mkBar(6, 99.3, 99.4, 97.5, 98.5),
		mkBar(7, 98.5, 99.9, 98.4, 99.6),
	}
	st, signals := stepAll(t, d, d.NewState(), bars)

	if len(signals) != 1 {
		t.Fatalf("second same-type confirmation must be suppressed, got %d signals", len(signals))
	}
	// Подавление не трогает состояние: кандидаты живут дальше
	if st.Up.Phase != PhasePending || st.Up.Candidate.AnchorIndex() != 6 {
		t.Fatalf("up candidate must survive suppression, got phase=%s", st.Up.Phase)
	}
	if st.Down.Phase != PhasePending || st.Down.Candidate.AnchorIndex() != 7 {
		t.Fatalf("down candidate must form on bar 7, got phase=%s", st.Down.Phase)
	}
}

func TestSingleContainmentAtOnce(t *testing.T) {
	d := testDetector(t)
	// После бара 8 в волне оба трека были pending, бар лежал внутри
	// обеих зон. Зону открывает только трек, обработанный первым.
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 99, 99.2, 97.6, 98),
		mkBar(5, 98, 99.7, 97.9, 99.3),
		mkBar(6, 99.3, 99.4, 97.5, 98.5),
		mkBar(7, 98.5, 99.9, 98.4, 99.6),
	}
	st, _ := stepAll(t, d, d.NewState(), bars)

	// Бар внутри диапазонов обоих якорей, но без momentum-условий:
	// close 99.0 не пересекает ни high 99.4, ни low 98.4.
	st, signals := stepAll(t, d, st, []bar.Bar{mkBar(8, 99.4, 99.5, 98.6, 99.0)})
	if len(signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(signals))
	}
	contained := 0
	if st.Up.IsContained() {
		contained++
	}
	if st.Down.IsContained() {
		contained++
	}
	if contained != 1 {
		t.Fatalf("expected exactly one contained track, got %d", contained)
	}
}

func TestStateRoundTripMidContainment(t *testing.T) {
	d := testDetector(t)
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 98.8, 99.2, 97.6, 98),
		mkBar(5, 98, 99.0, 97.8, 98.4),
		mkBar(6, 98.4, 99.1, 97.9, 98.6),
	}
	st, _ := stepAll(t, d, d.NewState(), bars)
	if !st.Up.IsContained() {
		t.Fatalf("expected containment active before snapshot")
	}

	raw, err := EncodeState(st)
	if err != nil {
		t.Fatalf("EncodeState: %v", err)
	}
	restored, err := d.DecodeState(raw)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}

	// Рестарт посреди зоны не меняет исход: пробой подтверждает
	// якорь так же, как при непрерывной обработке.
	breakout := mkBar(7, 98.6, 100.2, 98.5, 100.0)
	_, sigCold, err := d.Step(restored, breakout)
	if err != nil {
		t.Fatalf("Step after restore: %v", err)
	}
	_, sigWarm, err := d.Step(st, breakout)
	if err != nil {
		t.Fatalf("Step without restore: %v", err)
	}
	if sigCold == nil || sigWarm == nil {
		t.Fatalf("expected signal on both paths, cold=%v warm=%v", sigCold, sigWarm)
	}
	if sigCold.Type != sigWarm.Type || sigCold.BarIndex != sigWarm.BarIndex ||
		sigCold.TriggerIndex != sigWarm.TriggerIndex || sigCold.RuleName != sigWarm.RuleName {
		t.Fatalf("restored run diverged: cold=%+v warm=%+v", sigCold, sigWarm)
	}
}

func TestDecodeStateEmptyPayload(t *testing.T) {
	d := testDetector(t)
	st, err := d.DecodeState(nil)
	if err != nil {
		t.Fatalf("DecodeState(nil): %v", err)
	}
	if st.LastConfirmedIndex != -1 || st.Up.Phase != PhaseNone {
		t.Fatalf("empty payload must decode to a fresh state, got %+v", st)
	}
	if st.Recent.Cap != testConfig().WindowCap() {
		t.Fatalf("expected window cap %d, got %d", testConfig().WindowCap(), st.Recent.Cap)
	}
}

func TestDeterministicReplay(t *testing.T) {
	bars := []bar.Bar{
		mkBar(1, 100, 101, 99, 100),
		mkBar(2, 100, 100.5, 98.5, 99.5),
		mkBar(3, 99.5, 100, 98, 99),
		mkBar(4, 99, 99.2, 97.6, 98),
		mkBar(5, 98, 99.7, 97.9, 99.3),
		mkBar(6, 99.3, 99.4, 97.5, 98.5),
		mkBar(7, 98.5, 99.9, 98.4, 99.6),
		mkBar(8, 99.6, 99.7, 98.1, 98.3),
	}

	run := func() ([]byte, []*TrendSignal) {
		d := testDetector(t)
		st, signals := stepAll(t, d, d.NewState(), bars)
		raw, err := EncodeState(st)
		if err != nil {
			t.Fatalf("EncodeState: %v", err)
		}
		return raw, signals
	}

	rawA, sigA := run()
	rawB, sigB := run()

	if string(rawA) != string(rawB) {
		t.Fatalf("final states diverged:\n%s\n%s", rawA, rawB)
	}
	if len(sigA) != len(sigB) {
		t.Fatalf("signal counts diverged: %d vs %d", len(sigA), len(sigB))
	}
	for i := range sigA {
		// SignalID случайный, все смысловые поля обязаны совпадать
		if sigA[i].Type != sigB[i].Type || sigA[i].BarIndex != sigB[i].BarIndex ||
			sigA[i].TriggerIndex != sigB[i].TriggerIndex || sigA[i].RuleName != sigB[i].RuleName ||
			sigA[i].Price != sigB[i].Price {
			t.Fatalf("signal %d diverged: %+v vs %+v", i, sigA[i], sigB[i])
		}
	}
}

func TestContainmentAdverseExitWithoutBreakout(t *testing.T) {
	// Прямой вызов трекера зоны: выход против кандидата закрывает
	// зону без события пробоя, кандидат остается.
	tr := NewContainmentTracker(testConfig())
	cand := Candidate{AnchorBar: mkBar(4, 98.8, 99.2, 97.6, 98)}
	st := NewPivotState(4)
	st = st.WithTrack(DirectionUp, ContainedTrack(cand, ContainmentRange{
		RefHigh:    99.2,
		RefLow:     97.6,
		StartIndex: 5,
		InsideBars: 2,
	}))

	st, bo := tr.Update(st, mkBar(6, 98, 98.5, 97.2, 97.4))
	if bo != nil {
		t.Fatalf("adverse exit must not produce a breakout, got %+v", bo)
	}
	if st.Up.Phase != PhasePending || st.Up.Containment != nil {
		t.Fatalf("expected pending without containment, got phase=%s", st.Up.Phase)
	}
}

func TestStateValidate(t *testing.T) {
	cand := Candidate{AnchorBar: mkBar(4, 98.8, 99.2, 97.6, 98)}
	r := ContainmentRange{RefHigh: 99.2, RefLow: 97.6, StartIndex: 5, InsideBars: 1}

	cases := []struct {
		name  string
		state PivotState
	}{
		{
			name: "both tracks contained",
			state: PivotState{
				Up:                 ContainedTrack(cand, r),
				Down:               ContainedTrack(cand, r),
				LastConfirmedIndex: -1,
			},
		},
		{
			name: "pending without candidate",
			state: PivotState{
				Up:                 DirectionTrack{Phase: PhasePending},
				Down:               NoneTrack(),
				LastConfirmedIndex: -1,
			},
		},
		{
			name: "containment detached from anchor",
			state: PivotState{
				Up: ContainedTrack(cand, ContainmentRange{
					RefHigh: 100, RefLow: 97.6, StartIndex: 5, InsideBars: 1,
				}),
				Down:               NoneTrack(),
				LastConfirmedIndex: -1,
			},
		},
		{
			name: "candidate older than last confirmation",
			state: PivotState{
				Up:                 PendingTrack(cand),
				Down:               NoneTrack(),
				LastConfirmedType:  DowntrendStart,
				LastConfirmedIndex: 10,
			},
		},
	}
	for _, tc := range cases {
		err := tc.state.Validate(99)
		if err == nil {
			t.Fatalf("%s: expected invariant error", tc.name)
		}
		if _, ok := err.(*coreerrors.InvariantError); !ok {
			t.Fatalf("%s: expected InvariantError, got %T", tc.name, err)
		}
	}

	good := PivotState{Up: PendingTrack(cand), Down: NoneTrack(), LastConfirmedIndex: -1}
	if err := good.Validate(99); err != nil {
		t.Fatalf("valid state rejected: %v", err)
	}
}

func TestNewDetectorRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Lookback = 0
	if _, err := NewDetector("trend_start", cfg); err == nil {
		t.Fatalf("expected error for zero lookback")
	}
	if _, err := NewDetector("", testConfig()); err == nil {
		t.Fatalf("expected error for empty analyzer id")
	}
}

func TestSignalJSONShape(t *testing.T) {
	d := testDetector(t)
	bars := append(decliningBars(), mkBar(5, 98, 99.7, 97.9, 99.3))
	_, signals := stepAll(t, d, d.NewState(), bars)
	if len(signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(signals))
	}

	raw, err := json.Marshal(signals[0])
	if err != nil {
		t.Fatalf("marshal signal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal signal: %v", err)
	}
	for _, key := range []string{"signal_id", "analyzer_id", "signal_type", "contract_id", "timeframe", "bar_index", "timestamp", "signal_price", "rule_name", "trigger_index"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("signal JSON missing %q: %s", key, raw)
		}
	}
	if decoded["signal_type"] != string(UptrendStart) {
		t.Fatalf("unexpected wire type: %v", decoded["signal_type"])
	}
}
