// internal/core/domain/bar/types.go
package bar

import (
	"math"
	"time"

	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
)

// Bar - один OHLCV-бар. Неизменяемое значение: после создания поля
// не модифицируются, все преобразования возвращают новые значения.
type Bar struct {
	ContractID string    `json:"contract_id"`
	Timeframe  string    `json:"timeframe"`
	Index      int64     `json:"index"` // строго возрастает внутри потока (contract, timeframe)
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     *float64  `json:"volume"` // nil, если источник объем не отдает
}

// Range возвращает размах бара (high - low)
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Body возвращает тело бара (close - open, со знаком)
func (b Bar) Body() float64 {
	return b.Close - b.Open
}

// UpperWick возвращает верхнюю тень бара
func (b Bar) UpperWick() float64 {
	return b.High - math.Max(b.Open, b.Close)
}

// LowerWick возвращает нижнюю тень бара
func (b Bar) LowerWick() float64 {
	return math.Min(b.Open, b.Close) - b.Low
}

// IsBullish возвращает true для растущего бара
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish возвращает true для падающего бара
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// VolumeOrZero возвращает объем или 0, если объема нет
func (b Bar) VolumeOrZero() float64 {
	if b.Volume == nil {
		return 0
	}
	return *b.Volume
}

// Validate проверяет корректность бара. Возвращает *coreerrors.DataError
// при нарушении: NaN/Inf в ценах, high ниже max(open, close), low выше
// min(open, close), нулевое время.
func (b Bar) Validate() *coreerrors.DataError {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return coreerrors.NewDataError(b.Index, "%s is not finite: %v", f.name, f.value)
		}
	}

	if b.Volume != nil && (math.IsNaN(*b.Volume) || math.IsInf(*b.Volume, 0) || *b.Volume < 0) {
		return coreerrors.NewDataError(b.Index, "volume is invalid: %v", *b.Volume)
	}

	if b.High < math.Max(b.Open, b.Close) {
		return coreerrors.NewDataError(b.Index, "high %.8f < max(open, close) %.8f", b.High, math.Max(b.Open, b.Close))
	}

	if b.Low > math.Min(b.Open, b.Close) {
		return coreerrors.NewDataError(b.Index, "low %.8f > min(open, close) %.8f", b.Low, math.Min(b.Open, b.Close))
	}

	if b.Timestamp.IsZero() {
		return coreerrors.NewDataError(b.Index, "timestamp is zero")
	}

	if b.Index < 0 {
		return coreerrors.NewDataError(b.Index, "index is negative")
	}

	return nil
}

// OHLCV - снимок значений бара для сериализации в деталях сигнала
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *float64  `json:"volume"`
}

// Snapshot возвращает OHLCV-снимок бара
func (b Bar) Snapshot() OHLCV {
	return OHLCV{
		Timestamp: b.Timestamp,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		Close:     b.Close,
		Volume:    b.Volume,
	}
}
