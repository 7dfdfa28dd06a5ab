// internal/core/domain/trend/state.go
package trend

import (
	"encoding/json"
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
)

// NewPivotState создает стартовое состояние детектора
func NewPivotState(windowCap int) PivotState {
	return PivotState{
		Up:                 NoneTrack(),
		Down:               NoneTrack(),
		LastConfirmedIndex: -1,
		Recent:             bar.NewWindow(windowCap),
	}
}

// WithBar возвращает состояние с обработанным баром, добавленным в окно
func (s PivotState) WithBar(b bar.Bar) PivotState {
	s.Recent = s.Recent.Push(b)
	return s
}

// WithConfirmed фиксирует подтверждение: обновляет чередование и
// сбрасывает оба трека. Кандидаты старого режима не переживают
// подтверждение, новый режим копит свои с чистого листа.
func (s PivotState) WithConfirmed(t SignalType, anchorIndex int64) PivotState {
	s.LastConfirmedType = t
	s.LastConfirmedIndex = anchorIndex
	s.Up = NoneTrack()
	s.Down = NoneTrack()
	return s
}

// EncodeState сериализует состояние для строки watermark
func EncodeState(s PivotState) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("EncodeState: %w", err)
	}
	return raw, nil
}

// DecodeState восстанавливает состояние из строки watermark.
// Пустой payload означает свежий ключ - возвращается стартовое состояние.
func DecodeState(raw []byte, windowCap int) (PivotState, error) {
	if len(raw) == 0 {
		return NewPivotState(windowCap), nil
	}
	var s PivotState
	if err := json.Unmarshal(raw, &s); err != nil {
		return PivotState{}, fmt.Errorf("DecodeState: %w", err)
	}
	if s.Recent.Cap == 0 {
		s.Recent = bar.NewWindow(windowCap)
	}
	return s, nil
}

// Validate проверяет инварианты состояния после шага детектора.
// Нарушение - признак бага в переходах, а не в данных, поэтому
// возвращается InvariantError и воркер ключа останавливается.
func (s PivotState) Validate(barIndex int64) error {
	if err := validateTrack(DirectionUp, s.Up, barIndex); err != nil {
		return err
	}
	if err := validateTrack(DirectionDown, s.Down, barIndex); err != nil {
		return err
	}
	if s.Up.IsContained() && s.Down.IsContained() {
		return coreerrors.NewInvariantError(barIndex, "both tracks contained at once")
	}
	if s.LastConfirmedIndex < -1 {
		return coreerrors.NewInvariantError(barIndex, "last confirmed index %d below -1", s.LastConfirmedIndex)
	}
	if s.LastConfirmedType != "" && s.LastConfirmedType != UptrendStart && s.LastConfirmedType != DowntrendStart {
		return coreerrors.NewInvariantError(barIndex, "unknown last confirmed type %q", s.LastConfirmedType)
	}
	for _, d := range []Direction{DirectionUp, DirectionDown} {
		t := s.Track(d)
		if t.HasCandidate() && t.Candidate.AnchorIndex() <= s.LastConfirmedIndex {
			return coreerrors.NewInvariantError(barIndex,
				"%s candidate anchored at %d before last confirmation %d",
				d, t.Candidate.AnchorIndex(), s.LastConfirmedIndex)
		}
	}
	return nil
}

func validateTrack(d Direction, t DirectionTrack, barIndex int64) error {
	switch t.Phase {
	case PhaseNone:
		if t.Candidate != nil || t.Containment != nil {
			return coreerrors.NewInvariantError(barIndex, "%s track in phase none carries data", d)
		}
	case PhasePending:
		if t.Candidate == nil {
			return coreerrors.NewInvariantError(barIndex, "%s track pending without candidate", d)
		}
		if t.Containment != nil {
			return coreerrors.NewInvariantError(barIndex, "%s track pending with containment", d)
		}
	case PhaseContained:
		if t.Candidate == nil || t.Containment == nil {
			return coreerrors.NewInvariantError(barIndex, "%s track contained without candidate or range", d)
		}
		anchor := t.Candidate.AnchorBar
		if t.Containment.RefLow != anchor.Low || t.Containment.RefHigh != anchor.High {
			return coreerrors.NewInvariantError(barIndex,
				"%s containment range [%.8f, %.8f] detached from anchor [%.8f, %.8f]",
				d, t.Containment.RefLow, t.Containment.RefHigh, anchor.Low, anchor.High)
		}
		if t.Containment.StartIndex <= anchor.Index {
			return coreerrors.NewInvariantError(barIndex,
				"%s containment starts at %d not after anchor %d",
				d, t.Containment.StartIndex, anchor.Index)
		}
		if t.Containment.InsideBars < 1 {
			return coreerrors.NewInvariantError(barIndex, "%s containment with %d inside bars", d, t.Containment.InsideBars)
		}
	default:
		return coreerrors.NewInvariantError(barIndex, "%s track in unknown phase %q", d, t.Phase)
	}
	return nil
}
