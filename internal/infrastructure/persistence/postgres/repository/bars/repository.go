// internal/infrastructure/persistence/postgres/repository/bars/repository.go
package bars_repo

import (
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	"github.com/jmoiron/sqlx"
)

// Лимит параметров запроса в postgres - 65535, по 8 на бар
const insertChunkSize = 1000

type barsRepoImpl struct {
	db *sqlx.DB
}

// NewBarsRepository создаёт реализацию BarsRepository
func NewBarsRepository(db *sqlx.DB) BarsRepository {
	return &barsRepoImpl{db: db}
}

// InsertBatch вставляет бары чанками, дубликаты по уникальному ключу
// (contract_id, timeframe, ts) пропускаются
func (r *barsRepoImpl) InsertBatch(bars []models.Bar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO bars (contract_id, timeframe, ts, open, high, low, close, volume)
		VALUES (:contract_id, :timeframe, :ts, :open, :high, :low, :close, :volume)
		ON CONFLICT ON CONSTRAINT uq_bars_stream_ts DO NOTHING
	`

	var inserted int64
	for start := 0; start < len(bars); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(bars) {
			end = len(bars)
		}

		res, err := r.db.NamedExec(query, bars[start:end])
		if err != nil {
			return inserted, fmt.Errorf("BarsRepo.InsertBatch: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("BarsRepo.InsertBatch: rows affected: %w", err)
		}
		inserted += n
	}

	return inserted, nil
}

// ListAfter возвращает бары потока с id > afterID по возрастанию id
func (r *barsRepoImpl) ListAfter(contractID, timeframe string, afterID int64, limit int) ([]models.Bar, error) {
	query := `
		SELECT id, contract_id, timeframe, ts, open, high, low, close, volume, created_at
		FROM bars
		WHERE contract_id = $1 AND timeframe = $2 AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`

	var bars []models.Bar
	if err := r.db.Select(&bars, query, contractID, timeframe, afterID, limit); err != nil {
		return nil, fmt.Errorf("BarsRepo.ListAfter: %w", err)
	}
	return bars, nil
}

// Count возвращает число баров потока
func (r *barsRepoImpl) Count(contractID, timeframe string) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bars
		WHERE contract_id = $1 AND timeframe = $2
	`

	var count int64
	if err := r.db.Get(&count, query, contractID, timeframe); err != nil {
		return 0, fmt.Errorf("BarsRepo.Count: %w", err)
	}
	return count, nil
}
