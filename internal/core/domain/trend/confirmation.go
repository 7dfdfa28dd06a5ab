// internal/core/domain/trend/confirmation.go
package trend

import (
	"github.com/google/uuid"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
)

// ConfirmationEngine - проверка правил подтверждения кандидатов.
// За бар выпускается не больше одного сигнала, правила проверяются в
// фиксированном порядке: пробой зоны, momentum вверх, momentum вниз.
// Первый сработавший выигрывает.
type ConfirmationEngine struct {
	analyzerID string
	cfg        config.DetectorConfig
}

// NewConfirmationEngine создает движок подтверждения
func NewConfirmationEngine(analyzerID string, cfg config.DetectorConfig) *ConfirmationEngine {
	return &ConfirmationEngine{analyzerID: analyzerID, cfg: cfg}
}

// Evaluate проверяет правила подтверждения на закрытом баре.
// Состояние не меняет: фиксация подтверждения - отдельный переход.
func (e *ConfirmationEngine) Evaluate(state PivotState, b bar.Bar, bo *Breakout) *TrendSignal {
	if bo != nil && bo.Eligible {
		return e.breakoutSignal(b, bo)
	}
	if sig := e.momentumSignal(state, DirectionUp, b); sig != nil {
		return sig
	}
	return e.momentumSignal(state, DirectionDown, b)
}

// breakoutSignal строит сигнал по пробою зоны консолидации
func (e *ConfirmationEngine) breakoutSignal(trigger bar.Bar, bo *Breakout) *TrendSignal {
	tol := e.cfg.ToleranceFrac * (bo.Range.RefHigh - bo.Range.RefLow)
	details := map[string]interface{}{
		"ref_high":    bo.Range.RefHigh,
		"ref_low":     bo.Range.RefLow,
		"tolerance":   tol,
		"inside_bars": bo.Range.InsideBars,
		"start_index": bo.Range.StartIndex,
	}
	return e.signal(bo.Candidate, bo.Direction.SignalType(), RuleContainmentBreakout, trigger, details)
}

// momentumSignal проверяет прямое momentum-подтверждение: close бара
// пересек экстремум якоря, и изменение к close предыдущего бара не
// меньше порога таймфрейма. Работает только для кандидата без активной
// зоны консолидации.
func (e *ConfirmationEngine) momentumSignal(state PivotState, d Direction, b bar.Bar) *TrendSignal {
	track := state.Track(d)
	if track.Phase != PhasePending || track.Candidate == nil {
		return nil
	}
	anchor := track.Candidate.AnchorBar
	if b.Index <= anchor.Index {
		return nil
	}
	prev, ok := state.Recent.Last()
	if !ok || prev.Close <= 0 {
		return nil
	}
	threshold := e.cfg.MomentumFor(b.Timeframe)

	var crossed bool
	var momentum float64
	if d == DirectionUp {
		crossed = b.Close > anchor.High
		momentum = (b.Close - prev.Close) / prev.Close
	} else {
		crossed = b.Close < anchor.Low
		momentum = (prev.Close - b.Close) / prev.Close
	}
	if !crossed || momentum < threshold {
		return nil
	}
	details := map[string]interface{}{
		"momentum":   momentum,
		"threshold":  threshold,
		"prev_close": prev.Close,
	}
	return e.signal(*track.Candidate, d.SignalType(), RuleDirectMomentum, b, details)
}

// signal собирает сигнал: все ценовые поля из якорного бара,
// информация о триггере отдельно
func (e *ConfirmationEngine) signal(cand Candidate, st SignalType, rule string, trigger bar.Bar, details map[string]interface{}) *TrendSignal {
	anchor := cand.AnchorBar
	return &TrendSignal{
		SignalID:         uuid.New().String(),
		AnalyzerID:       e.analyzerID,
		Type:             st,
		ContractID:       anchor.ContractID,
		Timeframe:        anchor.Timeframe,
		BarIndex:         anchor.Index,
		Timestamp:        anchor.Timestamp,
		Price:            anchor.Close,
		RuleName:         rule,
		TriggerIndex:     trigger.Index,
		TriggerTimestamp: trigger.Timestamp,
		OHLCV:            anchor.Snapshot(),
		Details:          details,
	}
}
