// internal/core/domain/trend/types.go
package trend

import (
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
)

// Direction - направление разворота, за которым следит трек
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// SignalType - тип подтвержденного сигнала на проводе и в БД
type SignalType string

const (
	UptrendStart   SignalType = "uptrend_start"
	DowntrendStart SignalType = "downtrend_start"
)

// Правила подтверждения, попадают в TrendSignal.RuleName
const (
	RuleContainmentBreakout = "containment_breakout"
	RuleDirectMomentum      = "direct_momentum"
)

// SignalType возвращает тип сигнала для направления
func (d Direction) SignalType() SignalType {
	if d == DirectionUp {
		return UptrendStart
	}
	return DowntrendStart
}

// Direction возвращает направление, которому принадлежит тип сигнала
func (t SignalType) Direction() Direction {
	if t == UptrendStart {
		return DirectionUp
	}
	return DirectionDown
}

// Opposite возвращает противоположный тип сигнала
func (t SignalType) Opposite() SignalType {
	if t == UptrendStart {
		return DowntrendStart
	}
	return UptrendStart
}

// TrackPhase - фаза трека одного направления
type TrackPhase string

const (
	// PhaseNone - кандидата нет
	PhaseNone TrackPhase = "none"
	// PhasePending - есть незакрепленный кандидат, зона консолидации не активна
	PhasePending TrackPhase = "pending"
	// PhaseContained - кандидат есть и вокруг него активна зона консолидации
	PhaseContained TrackPhase = "contained"
)

// Candidate - кандидат на якорь разворота: бар с экстремумом строже
// всех баров окна формирования. Скользит за ценой, пока не подтвержден.
type Candidate struct {
	AnchorBar bar.Bar `json:"anchor_bar"`
}

// AnchorIndex возвращает индекс якорного бара
func (c Candidate) AnchorIndex() int64 {
	return c.AnchorBar.Index
}

// AnchorPrice возвращает экстремум якоря для направления:
// low для разворота вверх, high для разворота вниз
func (c Candidate) AnchorPrice(d Direction) float64 {
	if d == DirectionUp {
		return c.AnchorBar.Low
	}
	return c.AnchorBar.High
}

// ContainmentRange - активная зона консолидации вокруг якорного бара.
// Границы фиксируются диапазоном самого якоря в момент входа первого
// бара в зону и не пересчитываются.
type ContainmentRange struct {
	RefHigh    float64 `json:"ref_high"`
	RefLow     float64 `json:"ref_low"`
	StartIndex int64   `json:"start_index"`
	InsideBars int     `json:"inside_bars"`
}

// DirectionTrack - состояние одного направления: фаза, кандидат и,
// в фазе contained, зона консолидации
type DirectionTrack struct {
	Phase       TrackPhase        `json:"phase"`
	Candidate   *Candidate        `json:"candidate,omitempty"`
	Containment *ContainmentRange `json:"containment,omitempty"`
}

// NoneTrack возвращает пустой трек
func NoneTrack() DirectionTrack {
	return DirectionTrack{Phase: PhaseNone}
}

// PendingTrack возвращает трек с незакрепленным кандидатом
func PendingTrack(c Candidate) DirectionTrack {
	return DirectionTrack{Phase: PhasePending, Candidate: &c}
}

// ContainedTrack возвращает трек с кандидатом и активной зоной
func ContainedTrack(c Candidate, r ContainmentRange) DirectionTrack {
	return DirectionTrack{Phase: PhaseContained, Candidate: &c, Containment: &r}
}

// HasCandidate сообщает, есть ли у трека кандидат
func (t DirectionTrack) HasCandidate() bool {
	return t.Phase != PhaseNone && t.Candidate != nil
}

// IsContained сообщает, активна ли зона консолидации
func (t DirectionTrack) IsContained() bool {
	return t.Phase == PhaseContained
}

// PivotState - полное состояние детектора одной пары (контракт, таймфрейм).
// Сериализуется в строку watermark и восстанавливается при рестарте,
// поэтому все поля экспортируемые и JSON-совместимые.
type PivotState struct {
	Up   DirectionTrack `json:"up"`
	Down DirectionTrack `json:"down"`

	// LastConfirmedType - тип последнего подтвержденного сигнала,
	// пустая строка до первого подтверждения
	LastConfirmedType SignalType `json:"last_confirmed_type,omitempty"`
	// LastConfirmedIndex - индекс якорного бара последнего сигнала,
	// -1 до первого подтверждения
	LastConfirmedIndex int64 `json:"last_confirmed_index"`

	// Recent - окно недавних баров для формирования кандидатов
	// и momentum-подтверждения. Текущий бар добавляется после обработки.
	Recent bar.Window `json:"recent"`
}

// Track возвращает трек направления
func (s PivotState) Track(d Direction) DirectionTrack {
	if d == DirectionUp {
		return s.Up
	}
	return s.Down
}

// WithTrack возвращает копию состояния с замененным треком направления
func (s PivotState) WithTrack(d Direction, t DirectionTrack) PivotState {
	if d == DirectionUp {
		s.Up = t
	} else {
		s.Down = t
	}
	return s
}

// HasContained сообщает, есть ли активная зона хотя бы у одного трека
func (s PivotState) HasContained() bool {
	return s.Up.IsContained() || s.Down.IsContained()
}

// TrendSignal - подтвержденное начало тренда. После выпуска неизменяем,
// все поля берутся из якорного бара, кроме информации о триггере.
type TrendSignal struct {
	SignalID   string     `json:"signal_id" db:"signal_id"`
	AnalyzerID string     `json:"analyzer_id" db:"analyzer_id"`
	Type       SignalType `json:"signal_type" db:"type"`
	ContractID string     `json:"contract_id" db:"contract_id"`
	Timeframe  string     `json:"timeframe" db:"timeframe"`

	// BarIndex и Timestamp - индекс и время якорного бара, а не бара-триггера
	BarIndex  int64     `json:"bar_index" db:"bar_index"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	// Price - close якорного бара
	Price float64 `json:"signal_price" db:"price"`

	// RuleName - какое правило подтвердило сигнал
	RuleName string `json:"rule_name" db:"rule_name"`
	// TriggerIndex и TriggerTimestamp - бар, на котором произошло подтверждение
	TriggerIndex     int64     `json:"trigger_index" db:"trigger_index"`
	TriggerTimestamp time.Time `json:"trigger_timestamp" db:"trigger_timestamp"`

	// OHLCV - копия значений якорного бара для дебага и нотификаций
	OHLCV bar.OHLCV `json:"ohlcv"`

	// Details - диагностика правила: границы зоны, пороги, величина импульса
	Details map[string]interface{} `json:"details,omitempty"`
}

// Emoji возвращает иконку сигнала для уведомлений
func (s TrendSignal) Emoji() string {
	if s.Type == UptrendStart {
		return "📈"
	}
	return "📉"
}
