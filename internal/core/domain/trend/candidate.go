// internal/core/domain/trend/candidate.go
package trend

import (
	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
)

// CandidateTracker - формирование кандидатов и их скольжение за ценой.
// Кандидат обоих направлений может существовать одновременно, по одному
// на направление.
type CandidateTracker struct {
	cfg config.DetectorConfig
}

// NewCandidateTracker создает трекер кандидатов
func NewCandidateTracker(cfg config.DetectorConfig) *CandidateTracker {
	return &CandidateTracker{cfg: cfg}
}

// Update применяет бар к обоим трекам: передвигает существующих
// кандидатов на более строгий экстремум и формирует новых
func (t *CandidateTracker) Update(state PivotState, b bar.Bar) PivotState {
	state = t.updateDirection(state, DirectionUp, b)
	state = t.updateDirection(state, DirectionDown, b)
	return state
}

func (t *CandidateTracker) updateDirection(state PivotState, d Direction, b bar.Bar) PivotState {
	track := state.Track(d)
	if track.HasCandidate() {
		// Перехват якоря более строгим экстремумом. Активная зона
		// консолидации при этом сбрасывается, отсчет идет от нового якоря.
		if supersedes(d, b, track.Candidate.AnchorBar) {
			return state.WithTrack(d, PendingTrack(Candidate{AnchorBar: b}))
		}
		return state
	}
	if t.forms(state, d, b) {
		return state.WithTrack(d, PendingTrack(Candidate{AnchorBar: b}))
	}
	return state
}

// forms проверяет условие формирования кандидата: экстремум бара строже
// экстремумов всех последних Lookback баров, а close хуже close бара
// Lookback позиций назад. При неполном окне кандидат не формируется.
func (t *CandidateTracker) forms(state PivotState, d Direction, b bar.Bar) bool {
	n := t.cfg.Lookback
	tail := state.Recent.Tail(n)
	if len(tail) < n {
		return false
	}
	refClose := tail[0].Close
	if d == DirectionUp {
		minLow, ok := state.Recent.MinLow(n)
		return ok && b.Low < minLow && b.Close < refClose
	}
	maxHigh, ok := state.Recent.MaxHigh(n)
	return ok && b.High > maxHigh && b.Close > refClose
}

// supersedes сообщает, строже ли экстремум бара экстремума якоря
func supersedes(d Direction, b bar.Bar, anchor bar.Bar) bool {
	if d == DirectionUp {
		return b.Low < anchor.Low
	}
	return b.High > anchor.High
}
