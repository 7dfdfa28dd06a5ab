// internal/adapters/feed/types.go
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
)

// Record - запись закрытого бара во внешнем формате. REST и WebSocket
// отдают ее как JSON объект, CSV раскладывает те же поля по колонкам.
// Отсутствующий объем приходит как null и остается nil.
type Record struct {
	Timestamp string   `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    *float64 `json:"volume"`
}

// timeLayouts - допустимые форматы времени входных записей.
// Время без зоны трактуется как UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp разбирает время записи в одном из допустимых форматов
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", s)
}

// Bar собирает доменный бар из записи. Индекс назначает источник:
// файлы нумеруют строки с единицы, потоковые источники продолжают
// счетчик от watermark. Нечитаемое время возвращается как DataError,
// семантику полей (NaN, high/low) проверяет уже конвейер.
func (r Record) Bar(contractID, timeframe string, index int64) (bar.Bar, error) {
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return bar.Bar{}, coreerrors.NewDataError(index, "bad timestamp: %v", err).
			WithStream(contractID, timeframe)
	}
	b := bar.Bar{
		ContractID: contractID,
		Timeframe:  timeframe,
		Index:      index,
		Timestamp:  ts,
		Open:       r.Open,
		High:       r.High,
		Low:        r.Low,
		Close:      r.Close,
	}
	if r.Volume != nil {
		v := *r.Volume
		b.Volume = &v
	}
	return b, nil
}
