// internal/infrastructure/persistence/postgres/repository/watermarks/repository.go
package watermarks_repo

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	"github.com/jmoiron/sqlx"
)

type watermarksRepoImpl struct {
	db *sqlx.DB
}

// NewWatermarksRepository создаёт реализацию WatermarksRepository
func NewWatermarksRepository(db *sqlx.DB) WatermarksRepository {
	return &watermarksRepoImpl{db: db}
}

// Load возвращает watermark потока или (nil, nil), если поток
// еще не обрабатывался
func (r *watermarksRepoImpl) Load(analyzerID, contractID, timeframe string) (*models.Watermark, error) {
	query := `
		SELECT analyzer_id, contract_id, timeframe, bar_index, bar_ts, state, updated_at
		FROM watermarks
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
	`

	var wm models.Watermark
	err := r.db.Get(&wm, query, analyzerID, contractID, timeframe)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("WatermarksRepo.Load: %w", err)
	}
	return &wm, nil
}

// Save атомарно записывает watermark вместе с состоянием детектора.
// Один UPSERT: либо строка обновилась целиком, либо не обновилась вовсе,
// частично продвинутого watermark не бывает.
func (r *watermarksRepoImpl) Save(wm *models.Watermark) error {
	query := `
		INSERT INTO watermarks (analyzer_id, contract_id, timeframe, bar_index, bar_ts, state, updated_at)
		VALUES (:analyzer_id, :contract_id, :timeframe, :bar_index, :bar_ts, :state, NOW())
		ON CONFLICT (analyzer_id, contract_id, timeframe) DO UPDATE
		SET bar_index = EXCLUDED.bar_index,
		    bar_ts = EXCLUDED.bar_ts,
		    state = EXCLUDED.state,
		    updated_at = NOW()
	`

	if _, err := r.db.NamedExec(query, wm); err != nil {
		return fmt.Errorf("WatermarksRepo.Save: %w", err)
	}
	return nil
}

// Delete удаляет watermark потока
func (r *watermarksRepoImpl) Delete(analyzerID, contractID, timeframe string) error {
	query := `
		DELETE FROM watermarks
		WHERE analyzer_id = $1 AND contract_id = $2 AND timeframe = $3
	`

	if _, err := r.db.Exec(query, analyzerID, contractID, timeframe); err != nil {
		return fmt.Errorf("WatermarksRepo.Delete: %w", err)
	}
	return nil
}

// DeleteByAnalyzer удаляет все watermark анализатора
func (r *watermarksRepoImpl) DeleteByAnalyzer(analyzerID string) (int64, error) {
	query := `
		DELETE FROM watermarks
		WHERE analyzer_id = $1
	`

	res, err := r.db.Exec(query, analyzerID)
	if err != nil {
		return 0, fmt.Errorf("WatermarksRepo.DeleteByAnalyzer: %w", err)
	}

	return res.RowsAffected()
}

// List возвращает все watermark анализатора
func (r *watermarksRepoImpl) List(analyzerID string) ([]*models.Watermark, error) {
	query := `
		SELECT analyzer_id, contract_id, timeframe, bar_index, bar_ts, state, updated_at
		FROM watermarks
		WHERE analyzer_id = $1
		ORDER BY contract_id, timeframe
	`

	var wms []*models.Watermark
	if err := r.db.Select(&wms, query, analyzerID); err != nil {
		return nil, fmt.Errorf("WatermarksRepo.List: %w", err)
	}
	return wms, nil
}
