// internal/core/domain/trend/detector.go
package trend

import (
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
)

// Detector - пошаговый детектор начала тренда для одной пары
// (контракт, таймфрейм). Чистая функция от (состояние, бар) к
// (состояние, сигнал): без ввода-вывода, без часов, без случайности
// в решениях. Персистентность и дедупликация живут в stream.
type Detector struct {
	analyzerID   string
	cfg          config.DetectorConfig
	candidates   *CandidateTracker
	containment  *ContainmentTracker
	confirmation *ConfirmationEngine
	alternation  *AlternationEnforcer
}

// NewDetector создает детектор с проверкой конфигурации
func NewDetector(analyzerID string, cfg config.DetectorConfig) (*Detector, error) {
	if analyzerID == "" {
		return nil, fmt.Errorf("NewDetector: analyzer id is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewDetector: %w", err)
	}
	return &Detector{
		analyzerID:   analyzerID,
		cfg:          cfg,
		candidates:   NewCandidateTracker(cfg),
		containment:  NewContainmentTracker(cfg),
		confirmation: NewConfirmationEngine(analyzerID, cfg),
		alternation:  NewAlternationEnforcer(),
	}, nil
}

// AnalyzerID возвращает идентификатор анализатора
func (d *Detector) AnalyzerID() string {
	return d.analyzerID
}

// Config возвращает конфигурацию детектора
func (d *Detector) Config() config.DetectorConfig {
	return d.cfg
}

// NewState создает стартовое состояние для свежего ключа
func (d *Detector) NewState() PivotState {
	return NewPivotState(d.cfg.WindowCap())
}

// DecodeState восстанавливает состояние из сериализованного watermark
func (d *Detector) DecodeState(raw []byte) (PivotState, error) {
	return DecodeState(raw, d.cfg.WindowCap())
}

// Step обрабатывает один закрытый бар. Порядок стадий фиксирован:
// кандидаты, зона консолидации, подтверждение, чередование, фиксация.
// Бар добавляется в окно последним, уже после всех проверок, поэтому
// окно на входе стадий не содержит текущий бар.
func (d *Detector) Step(state PivotState, b bar.Bar) (PivotState, *TrendSignal, error) {
	state = d.candidates.Update(state, b)
	state, breakout := d.containment.Update(state, b)
	sig := d.confirmation.Evaluate(state, b, breakout)
	sig = d.alternation.Gate(state, sig)
	if sig != nil {
		state = state.WithConfirmed(sig.Type, sig.BarIndex)
	}
	state = state.WithBar(b)
	if err := state.Validate(b.Index); err != nil {
		return state, nil, err
	}
	return state, sig, nil
}
