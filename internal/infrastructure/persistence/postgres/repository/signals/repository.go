// internal/infrastructure/persistence/postgres/repository/signals/repository.go
package signals_repo

import (
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	"github.com/jmoiron/sqlx"
)

type signalsRepoImpl struct {
	db *sqlx.DB
}

// NewSignalsRepository создаёт реализацию SignalsRepository
func NewSignalsRepository(db *sqlx.DB) SignalsRepository {
	return &signalsRepoImpl{db: db}
}

// Insert вставляет сигнал. Повтор по ключу дедупликации
// (analyzer_id, contract_id, timeframe, bar_index, type) превращается
// в no-op и возвращает false: так повторная обработка бара после
// рестарта не плодит дубликатов.
func (r *signalsRepoImpl) Insert(sig *models.Signal) (bool, error) {
	query := `
		INSERT INTO trend_signals (
			signal_id, analyzer_id, contract_id, timeframe, type,
			bar_index, ts, price, rule_name, trigger_index, trigger_ts,
			open, high, low, close, volume, details
		)
		VALUES (
			:signal_id, :analyzer_id, :contract_id, :timeframe, :type,
			:bar_index, :ts, :price, :rule_name, :trigger_index, :trigger_ts,
			:open, :high, :low, :close, :volume, :details
		)
		ON CONFLICT ON CONSTRAINT uq_trend_signals_dedup DO NOTHING
	`

	res, err := r.db.NamedExec(query, sig)
	if err != nil {
		return false, fmt.Errorf("SignalsRepo.Insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("SignalsRepo.Insert: rows affected: %w", err)
	}

	return n > 0, nil
}

// ListByStream возвращает последние сигналы потока, свежие первыми
func (r *signalsRepoImpl) ListByStream(analyzerID, contractID, timeframe string, limit int) ([]*models.Signal, error) {
	query := `
		SELECT id, signal_id, analyzer_id, contract_id, timeframe, type,
		       bar_index, ts, price, rule_name, trigger_index, trigger_ts,
		       open, high, low, close, volume, details, created_at
		FROM trend_signals
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
		ORDER BY bar_index DESC
		LIMIT $4
	`

	var signals []*models.Signal
	if err := r.db.Select(&signals, query, analyzerID, contractID, timeframe, limit); err != nil {
		return nil, fmt.Errorf("SignalsRepo.ListByStream: %w", err)
	}
	return signals, nil
}

// DeleteByStream удаляет сигналы потока, возвращает число удаленных
func (r *signalsRepoImpl) DeleteByStream(analyzerID, contractID, timeframe string) (int64, error) {
	query := `
		DELETE FROM trend_signals
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
	`

	res, err := r.db.Exec(query, analyzerID, contractID, timeframe)
	if err != nil {
		return 0, fmt.Errorf("SignalsRepo.DeleteByStream: %w", err)
	}

	return res.RowsAffected()
}

// DeleteByAnalyzer удаляет все сигналы анализатора
func (r *signalsRepoImpl) DeleteByAnalyzer(analyzerID string) (int64, error) {
	query := `
		DELETE FROM trend_signals
		WHERE analyzer_id = $1
	`

	res, err := r.db.Exec(query, analyzerID)
	if err != nil {
		return 0, fmt.Errorf("SignalsRepo.DeleteByAnalyzer: %w", err)
	}

	return res.RowsAffected()
}
