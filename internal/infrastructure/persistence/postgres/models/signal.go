// internal/infrastructure/persistence/postgres/models/signal.go
package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	"github.com/jmoiron/sqlx/types"
)

// Signal - строка таблицы trend_signals. OHLCV якорного бара хранится
// плоскими колонками, диагностика правила - в jsonb.
type Signal struct {
	ID               int64           `db:"id"            json:"id"`
	SignalID         string          `db:"signal_id"     json:"signal_id"`
	AnalyzerID       string          `db:"analyzer_id"   json:"analyzer_id"`
	ContractID       string          `db:"contract_id"   json:"contract_id"`
	Timeframe        string          `db:"timeframe"     json:"timeframe"`
	Type             string          `db:"type"          json:"type"`
	BarIndex         int64           `db:"bar_index"     json:"bar_index"`
	Timestamp        time.Time       `db:"ts"            json:"ts"`
	Price            float64         `db:"price"         json:"price"`
	RuleName         string          `db:"rule_name"     json:"rule_name"`
	TriggerIndex     int64           `db:"trigger_index" json:"trigger_index"`
	TriggerTimestamp time.Time       `db:"trigger_ts"    json:"trigger_ts"`
	Open             float64         `db:"open"          json:"open"`
	High             float64         `db:"high"          json:"high"`
	Low              float64         `db:"low"           json:"low"`
	Close            float64         `db:"close"         json:"close"`
	Volume           sql.NullFloat64 `db:"volume"        json:"volume"`
	Details          types.JSONText  `db:"details"       json:"details,omitempty"`
	CreatedAt        time.Time       `db:"created_at"    json:"created_at"`
}

// SignalFromDomain собирает строку из подтвержденного сигнала
func SignalFromDomain(sig *trend.TrendSignal) (*Signal, error) {
	m := &Signal{
		SignalID:         sig.SignalID,
		AnalyzerID:       sig.AnalyzerID,
		ContractID:       sig.ContractID,
		Timeframe:        sig.Timeframe,
		Type:             string(sig.Type),
		BarIndex:         sig.BarIndex,
		Timestamp:        sig.Timestamp,
		Price:            sig.Price,
		RuleName:         sig.RuleName,
		TriggerIndex:     sig.TriggerIndex,
		TriggerTimestamp: sig.TriggerTimestamp,
		Open:             sig.OHLCV.Open,
		High:             sig.OHLCV.High,
		Low:              sig.OHLCV.Low,
		Close:            sig.OHLCV.Close,
	}

	if sig.OHLCV.Volume != nil {
		m.Volume = sql.NullFloat64{Float64: *sig.OHLCV.Volume, Valid: true}
	}

	if len(sig.Details) > 0 {
		raw, err := json.Marshal(sig.Details)
		if err != nil {
			return nil, fmt.Errorf("SignalFromDomain: marshal details: %w", err)
		}
		m.Details = types.JSONText(raw)
	}

	return m, nil
}

// ToDomain восстанавливает доменный сигнал из строки
func (m Signal) ToDomain() (*trend.TrendSignal, error) {
	sig := &trend.TrendSignal{
		SignalID:         m.SignalID,
		AnalyzerID:       m.AnalyzerID,
		Type:             trend.SignalType(m.Type),
		ContractID:       m.ContractID,
		Timeframe:        m.Timeframe,
		BarIndex:         m.BarIndex,
		Timestamp:        m.Timestamp,
		Price:            m.Price,
		RuleName:         m.RuleName,
		TriggerIndex:     m.TriggerIndex,
		TriggerTimestamp: m.TriggerTimestamp,
		OHLCV: bar.OHLCV{
			Timestamp: m.Timestamp,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
		},
	}

	if m.Volume.Valid {
		v := m.Volume.Float64
		sig.OHLCV.Volume = &v
	}

	if len(m.Details) > 0 {
		if err := json.Unmarshal(m.Details, &sig.Details); err != nil {
			return nil, fmt.Errorf("Signal.ToDomain: unmarshal details: %w", err)
		}
	}

	return sig, nil
}
