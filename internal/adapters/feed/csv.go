// internal/adapters/feed/csv.go
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/stream"
)

// csvColumns - позиции полей бара в строке файла. Объем опционален,
// volume = -1 означает что колонки нет.
type csvColumns struct {
	ts     int
	open   int
	high   int
	low    int
	close  int
	volume int
}

// required возвращает наибольший индекс обязательной колонки
func (c csvColumns) required() int {
	max := c.ts
	for _, i := range []int{c.open, c.high, c.low, c.close} {
		if i > max {
			max = i
		}
	}
	return max
}

// CSVFeed читает закрытые бары из CSV файла с заголовком. Порядок
// колонок произвольный, имена: timestamp|time|ts|date, open, high, low,
// close, volume|vol. Индекс бара - порядковый номер строки данных с
// единицы, битая строка тоже занимает номер и возвращается как
// DataError, судьбу бара решает политика конвейера.
type CSVFeed struct {
	path       string
	contractID string
	timeframe  string
	file       *os.File
	reader     *csv.Reader
	cols       csvColumns
	ordinal    int64
}

// NewCSVFeed открывает файл и разбирает заголовок
func NewCSVFeed(path, contractID, timeframe string) (*CSVFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("NewCSVFeed: %w", err)
	}
	reader := csv.NewReader(file)
	// Длину строк проверяем сами, битая строка не должна ломать чтение
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("NewCSVFeed: header of %s: %w", path, err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("NewCSVFeed: %s: %w", path, err)
	}
	return &CSVFeed{
		path:       path,
		contractID: contractID,
		timeframe:  timeframe,
		file:       file,
		reader:     reader,
		cols:       cols,
	}, nil
}

// mapColumns находит колонки бара по именам заголовка
func mapColumns(header []string) (csvColumns, error) {
	cols := csvColumns{ts: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "ts", "date":
			cols.ts = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close":
			cols.close = i
		case "volume", "vol":
			cols.volume = i
		}
	}
	for name, idx := range map[string]int{
		"timestamp": cols.ts,
		"open":      cols.open,
		"high":      cols.high,
		"low":       cols.low,
		"close":     cols.close,
	} {
		if idx < 0 {
			return cols, fmt.Errorf("header has no %s column", name)
		}
	}
	return cols, nil
}

// Next возвращает следующий бар файла, io.EOF после последней строки
func (f *CSVFeed) Next(stop <-chan struct{}) (bar.Bar, error) {
	select {
	case <-stop:
		return bar.Bar{}, stream.ErrStopped
	default:
	}
	rec, err := f.reader.Read()
	if err == io.EOF {
		return bar.Bar{}, io.EOF
	}
	f.ordinal++
	if err != nil {
		return bar.Bar{}, f.rowError("row not parsed: %v", err)
	}
	return f.parseRow(rec)
}

func (f *CSVFeed) parseRow(rec []string) (bar.Bar, error) {
	if len(rec) <= f.cols.required() {
		return bar.Bar{}, f.rowError("row has %d fields", len(rec))
	}
	r := Record{Timestamp: rec[f.cols.ts]}
	var err error
	if r.Open, err = parsePrice(rec[f.cols.open]); err != nil {
		return bar.Bar{}, f.rowError("bad open: %v", err)
	}
	if r.High, err = parsePrice(rec[f.cols.high]); err != nil {
		return bar.Bar{}, f.rowError("bad high: %v", err)
	}
	if r.Low, err = parsePrice(rec[f.cols.low]); err != nil {
		return bar.Bar{}, f.rowError("bad low: %v", err)
	}
	if r.Close, err = parsePrice(rec[f.cols.close]); err != nil {
		return bar.Bar{}, f.rowError("bad close: %v", err)
	}
	if f.cols.volume >= 0 && f.cols.volume < len(rec) {
		raw := strings.TrimSpace(rec[f.cols.volume])
		if raw != "" && !strings.EqualFold(raw, "null") {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return bar.Bar{}, f.rowError("bad volume: %v", err)
			}
			r.Volume = &v
		}
	}
	return r.Bar(f.contractID, f.timeframe, f.ordinal)
}

func parsePrice(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func (f *CSVFeed) rowError(format string, args ...interface{}) error {
	return coreerrors.NewDataError(f.ordinal, format, args...).
		WithStream(f.contractID, f.timeframe)
}

// Close закрывает файл
func (f *CSVFeed) Close() error {
	return f.file.Close()
}
