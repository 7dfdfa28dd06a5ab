// internal/infrastructure/persistence/postgres/models/watermark.go
package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Watermark - строка таблицы watermarks. Одна строка на ключ потока,
// state хранит сериализованное состояние детектора на момент bar_index.
type Watermark struct {
	AnalyzerID   string         `db:"analyzer_id" json:"analyzer_id"`
	ContractID   string         `db:"contract_id" json:"contract_id"`
	Timeframe    string         `db:"timeframe"   json:"timeframe"`
	BarIndex     int64          `db:"bar_index"   json:"bar_index"`
	BarTimestamp time.Time      `db:"bar_ts"      json:"bar_ts"`
	State        types.JSONText `db:"state"       json:"state"`
	UpdatedAt    time.Time      `db:"updated_at"  json:"updated_at"`
}
