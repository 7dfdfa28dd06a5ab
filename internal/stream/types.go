// internal/stream/types.go
package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
)

// ErrStopped возвращается блокирующими операциями при закрытии стоп-канала
var ErrStopped = errors.New("stream: stopped")

// StreamKey - ключ потока. Один ключ - один воркер, одно состояние
// детектора, одна строка watermark.
type StreamKey struct {
	AnalyzerID string `json:"analyzer_id" db:"analyzer_id"`
	ContractID string `json:"contract_id" db:"contract_id"`
	Timeframe  string `json:"timeframe" db:"timeframe"`
}

// String возвращает ключ в виде "analyzer/contract/timeframe"
func (k StreamKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AnalyzerID, k.ContractID, k.Timeframe)
}

// Validate проверяет заполненность ключа
func (k StreamKey) Validate() error {
	if k.AnalyzerID == "" || k.ContractID == "" || k.Timeframe == "" {
		return fmt.Errorf("StreamKey.Validate: incomplete key %q", k.String())
	}
	return nil
}

// Watermark - прогресс потока вместе с сериализованным состоянием
// детектора. Сохраняется одним UPSERT, поэтому пара (состояние,
// watermark) атомарна: после рестарта они всегда согласованы.
type Watermark struct {
	Key          StreamKey `json:"key"`
	BarIndex     int64     `json:"bar_index"`
	BarTimestamp time.Time `json:"bar_timestamp"`
	State        []byte    `json:"state"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FreshWatermark возвращает watermark свежего ключа: ни один бар не обработан
func FreshWatermark(key StreamKey) Watermark {
	return Watermark{Key: key, BarIndex: -1}
}

// BarSource - источник закрытых баров одного потока в порядке возрастания
// индексов. Next блокируется до следующего бара, io.EOF означает
// исчерпание источника, ErrStopped - закрытие стоп-канала.
type BarSource interface {
	Next(stop <-chan struct{}) (bar.Bar, error)
	Close() error
}

// SignalSink - приемник подтвержденных сигналов. Insert обязан быть
// идемпотентным: повтор по ключу дедупликации возвращает (false, nil).
type SignalSink interface {
	Insert(sig *trend.TrendSignal) (bool, error)
}

// WatermarkStore - хранилище watermark со состоянием. Load возвращает
// (nil, nil) для неизвестного ключа, Save делает атомарный UPSERT.
type WatermarkStore interface {
	Load(key StreamKey) (*Watermark, error)
	Save(wm *Watermark) error
}

// DataErrorPolicy - реакция воркера на битый бар
type DataErrorPolicy string

const (
	// PolicyHalt - остановить воркер ключа до ручного вмешательства
	PolicyHalt DataErrorPolicy = "halt"
	// PolicySkip - отклонить бар, записать причину и продолжить.
	// Watermark при этом не продвигается.
	PolicySkip DataErrorPolicy = "skip"
)

// Validate проверяет известность политики
func (p DataErrorPolicy) Validate() error {
	if p != PolicyHalt && p != PolicySkip {
		return fmt.Errorf("DataErrorPolicy.Validate: unknown policy %q", string(p))
	}
	return nil
}

// RetryConfig - экспоненциальная задержка повторов операций хранилища
type RetryConfig struct {
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
	Multiplier float64       `json:"multiplier"`
	// MaxAttempts - лимит попыток, 0 означает повторять до остановки
	MaxAttempts int `json:"max_attempts"`
}

// DefaultRetry - конфигурация повторов по умолчанию
var DefaultRetry = RetryConfig{
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
	Multiplier:  2,
	MaxAttempts: 0,
}

// DelayFor возвращает задержку перед попыткой attempt (с единицы)
func (c RetryConfig) DelayFor(attempt int) time.Duration {
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.Multiplier)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}
