// internal/adapters/feed/parquet.go
package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/stream"
)

// ParquetRow - строка parquet файла с барами. Время хранится как
// миллисекунды от эпохи в UTC, объем опционален. Тот же тип пишет
// экспорт в cmd/backfill.
type ParquetRow struct {
	Timestamp int64    `parquet:"timestamp"`
	Open      float64  `parquet:"open"`
	High      float64  `parquet:"high"`
	Low       float64  `parquet:"low"`
	Close     float64  `parquet:"close"`
	Volume    *float64 `parquet:"volume,optional"`
}

// ParquetFeed читает закрытые бары из parquet файла. Схему контролирует
// формат, поэтому битых строк здесь не бывает: файл либо читается
// целиком, либо источник не создается. Индекс бара - порядковый номер
// строки с единицы.
type ParquetFeed struct {
	contractID string
	timeframe  string
	rows       []ParquetRow
	pos        int
}

// NewParquetFeed загружает файл в память. Файловые источники - режим
// прогона истории, объемы там умеренные.
func NewParquetFeed(path, contractID, timeframe string) (*ParquetFeed, error) {
	rows, err := parquet.ReadFile[ParquetRow](path)
	if err != nil {
		return nil, fmt.Errorf("NewParquetFeed: %s: %w", path, err)
	}
	return &ParquetFeed{
		contractID: contractID,
		timeframe:  timeframe,
		rows:       rows,
	}, nil
}

// Next возвращает следующий бар файла, io.EOF после последней строки
func (f *ParquetFeed) Next(stop <-chan struct{}) (bar.Bar, error) {
	select {
	case <-stop:
		return bar.Bar{}, stream.ErrStopped
	default:
	}
	if f.pos >= len(f.rows) {
		return bar.Bar{}, io.EOF
	}
	row := f.rows[f.pos]
	f.pos++
	b := bar.Bar{
		ContractID: f.contractID,
		Timeframe:  f.timeframe,
		Index:      int64(f.pos),
		Timestamp:  time.UnixMilli(row.Timestamp).UTC(),
		Open:       row.Open,
		High:       row.High,
		Low:        row.Low,
		Close:      row.Close,
	}
	if row.Volume != nil {
		v := *row.Volume
		b.Volume = &v
	}
	return b, nil
}

// Close освобождает источник
func (f *ParquetFeed) Close() error {
	f.rows = nil
	return nil
}
