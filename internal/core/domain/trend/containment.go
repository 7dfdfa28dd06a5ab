// internal/core/domain/trend/containment.go
package trend

import (
	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
)

// Breakout - событие пробоя зоны консолидации в сторону кандидата.
// Живет один бар и передается движку подтверждения.
type Breakout struct {
	Direction Direction
	Candidate Candidate
	Range     ContainmentRange
	// Eligible - набрала ли зона минимум баров внутри к моменту пробоя
	Eligible bool
}

// ContainmentTracker - жизненный цикл зоны консолидации: открытие возле
// кандидата, счет баров внутри, закрытие пробоем или выходом против.
// Одновременно активна максимум одна зона на пару.
type ContainmentTracker struct {
	cfg config.DetectorConfig
}

// NewContainmentTracker создает трекер зон консолидации
func NewContainmentTracker(cfg config.DetectorConfig) *ContainmentTracker {
	return &ContainmentTracker{cfg: cfg}
}

// Update применяет бар к обоим трекам. Первым обрабатывается трек с
// активной зоной, чтобы освободившийся слот второй трек мог занять
// этим же баром. Пробоев за бар не больше одного.
func (t *ContainmentTracker) Update(state PivotState, b bar.Bar) (PivotState, *Breakout) {
	order := [2]Direction{DirectionUp, DirectionDown}
	if state.Down.IsContained() {
		order = [2]Direction{DirectionDown, DirectionUp}
	}
	var breakout *Breakout
	for _, d := range order {
		var bo *Breakout
		state, bo = t.updateDirection(state, d, b)
		if bo != nil {
			breakout = bo
		}
	}
	return state, breakout
}

func (t *ContainmentTracker) updateDirection(state PivotState, d Direction, b bar.Bar) (PivotState, *Breakout) {
	track := state.Track(d)
	if !track.HasCandidate() {
		return state, nil
	}
	anchor := track.Candidate.AnchorBar
	// Сам якорный бар зону не открывает и не наполняет
	if b.Index <= anchor.Index {
		return state, nil
	}
	refLow, refHigh := anchor.Low, anchor.High
	tol := t.cfg.ToleranceFrac * (refHigh - refLow)

	if track.IsContained() {
		r := *track.Containment
		switch {
		// Выход против кандидата проверяется первым и закрывает зону без пробоя
		case adverse(d, b, refLow, refHigh):
			return state.WithTrack(d, PendingTrack(*track.Candidate)), nil
		case favorable(d, b, refLow, refHigh, tol):
			bo := &Breakout{
				Direction: d,
				Candidate: *track.Candidate,
				Range:     r,
				Eligible:  r.InsideBars >= t.cfg.MinInsideBars,
			}
			return state.WithTrack(d, PendingTrack(*track.Candidate)), bo
		default:
			r.InsideBars++
			return state.WithTrack(d, ContainedTrack(*track.Candidate, r)), nil
		}
	}

	// Фаза pending: зону открывает первый бар целиком внутри диапазона
	// якоря. Занятый другим треком слот не перехватывается.
	if state.HasContained() {
		return state, nil
	}
	if inside(d, b, refLow, refHigh, tol) {
		r := ContainmentRange{
			RefHigh:    refHigh,
			RefLow:     refLow,
			StartIndex: b.Index,
			InsideBars: 1,
		}
		return state.WithTrack(d, ContainedTrack(*track.Candidate, r)), nil
	}
	return state, nil
}

// inside проверяет, лежит ли бар целиком внутри зоны. Допуск расширяет
// зону только в сторону пробоя: вверх для разворота вверх, вниз для
// разворота вниз.
func inside(d Direction, b bar.Bar, refLow, refHigh, tol float64) bool {
	if d == DirectionUp {
		return b.Low >= refLow && b.High <= refHigh+tol
	}
	return b.High <= refHigh && b.Low >= refLow-tol
}

// favorable проверяет пробой зоны в сторону кандидата
func favorable(d Direction, b bar.Bar, refLow, refHigh, tol float64) bool {
	if d == DirectionUp {
		return b.High > refHigh+tol
	}
	return b.Low < refLow-tol
}

// adverse проверяет выход за зону против кандидата. Условие совпадает
// с перехватом якоря, поэтому срабатывает и при отключенном трекере
// кандидатов.
func adverse(d Direction, b bar.Bar, refLow, refHigh float64) bool {
	if d == DirectionUp {
		return b.Low < refLow
	}
	return b.High > refHigh
}
