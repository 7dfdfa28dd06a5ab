// internal/infrastructure/persistence/postgres/models/bar.go
package models

import (
	"database/sql"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
)

// Bar - строка таблицы bars. ID назначает база, он же служит
// монотонным индексом бара внутри потока (contract_id, timeframe).
type Bar struct {
	ID         int64           `db:"id"          json:"id"`
	ContractID string          `db:"contract_id" json:"contract_id"`
	Timeframe  string          `db:"timeframe"   json:"timeframe"`
	Timestamp  time.Time       `db:"ts"          json:"ts"`
	Open       float64         `db:"open"        json:"open"`
	High       float64         `db:"high"        json:"high"`
	Low        float64         `db:"low"         json:"low"`
	Close      float64         `db:"close"       json:"close"`
	Volume     sql.NullFloat64 `db:"volume"      json:"volume"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}

// NewBar собирает строку для вставки, ID и CreatedAt назначит база
func NewBar(contractID, timeframe string, ts time.Time, open, high, low, close float64, volume *float64) Bar {
	m := Bar{
		ContractID: contractID,
		Timeframe:  timeframe,
		Timestamp:  ts,
		Open:       open,
		High:       high,
		Low:        low,
		Close:      close,
	}
	if volume != nil {
		m.Volume = sql.NullFloat64{Float64: *volume, Valid: true}
	}
	return m
}

// ToDomain возвращает доменный бар для детектора
func (m Bar) ToDomain() bar.Bar {
	b := bar.Bar{
		ContractID: m.ContractID,
		Timeframe:  m.Timeframe,
		Index:      m.ID,
		Timestamp:  m.Timestamp,
		Open:       m.Open,
		High:       m.High,
		Low:        m.Low,
		Close:      m.Close,
	}
	if m.Volume.Valid {
		v := m.Volume.Float64
		b.Volume = &v
	}
	return b
}
