// internal/infrastructure/persistence/postgres/adapter.go
package postgres

import (
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	signals_repo "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/repository/signals"
	watermarks_repo "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/repository/watermarks"
	"github.com/burningportra/projectx-sub002/internal/stream"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// SignalStore адаптирует репозиторий сигналов к stream.SignalSink.
// Ошибки БД заворачиваются в StorageError, чтобы воркер их повторял.
type SignalStore struct {
	repo signals_repo.SignalsRepository
}

// NewSignalStore создает приемник сигналов поверх postgres
func NewSignalStore(db *sqlx.DB) *SignalStore {
	return &SignalStore{repo: signals_repo.NewSignalsRepository(db)}
}

// Insert вставляет сигнал, повтор по ключу дедупликации дает (false, nil)
func (s *SignalStore) Insert(sig *trend.TrendSignal) (bool, error) {
	row, err := models.SignalFromDomain(sig)
	if err != nil {
		// Ошибка сериализации не лечится повтором
		return false, fmt.Errorf("SignalStore.Insert: %w", err)
	}

	inserted, err := s.repo.Insert(row)
	if err != nil {
		return false, coreerrors.NewStorageError("signal_insert", err)
	}
	return inserted, nil
}

// WatermarkStore адаптирует репозиторий watermark к stream.WatermarkStore
type WatermarkStore struct {
	repo watermarks_repo.WatermarksRepository
}

// NewWatermarkStore создает хранилище watermark поверх postgres
func NewWatermarkStore(db *sqlx.DB) *WatermarkStore {
	return &WatermarkStore{repo: watermarks_repo.NewWatermarksRepository(db)}
}

// Load возвращает watermark ключа или (nil, nil) для свежего ключа
func (s *WatermarkStore) Load(key stream.StreamKey) (*stream.Watermark, error) {
	row, err := s.repo.Load(key.AnalyzerID, key.ContractID, key.Timeframe)
	if err != nil {
		return nil, coreerrors.NewStorageError("watermark_load", err)
	}
	if row == nil {
		return nil, nil
	}

	return &stream.Watermark{
		Key:          key,
		BarIndex:     row.BarIndex,
		BarTimestamp: row.BarTimestamp,
		State:        []byte(row.State),
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// Save атомарно записывает watermark вместе с состоянием детектора
func (s *WatermarkStore) Save(wm *stream.Watermark) error {
	row := &models.Watermark{
		AnalyzerID:   wm.Key.AnalyzerID,
		ContractID:   wm.Key.ContractID,
		Timeframe:    wm.Key.Timeframe,
		BarIndex:     wm.BarIndex,
		BarTimestamp: wm.BarTimestamp,
		State:        types.JSONText(wm.State),
	}

	if err := s.repo.Save(row); err != nil {
		return coreerrors.NewStorageError("watermark_save", err)
	}
	return nil
}

// ResetStream удаляет сигналы и watermark потока в одной транзакции.
// Возвращает число удаленных сигналов. Следующий запуск анализатора
// обработает поток с нуля, заново выпустив те же сигналы.
func ResetStream(db *sqlx.DB, analyzerID, contractID, timeframe string) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("ResetStream: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		DELETE FROM trend_signals
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
	`, analyzerID, contractID, timeframe)
	if err != nil {
		return 0, fmt.Errorf("ResetStream: delete signals: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ResetStream: rows affected: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM watermarks
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
	`, analyzerID, contractID, timeframe); err != nil {
		return 0, fmt.Errorf("ResetStream: delete watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ResetStream: commit: %w", err)
	}

	return deleted, nil
}

// ResetAnalyzer удаляет сигналы и watermark всех потоков анализатора
// в одной транзакции. Возвращает число удаленных сигналов.
func ResetAnalyzer(db *sqlx.DB, analyzerID string) (int64, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("ResetAnalyzer: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM trend_signals WHERE analyzer_id = $1`, analyzerID)
	if err != nil {
		return 0, fmt.Errorf("ResetAnalyzer: delete signals: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ResetAnalyzer: rows affected: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM watermarks WHERE analyzer_id = $1`, analyzerID); err != nil {
		return 0, fmt.Errorf("ResetAnalyzer: delete watermarks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ResetAnalyzer: commit: %w", err)
	}

	return deleted, nil
}
