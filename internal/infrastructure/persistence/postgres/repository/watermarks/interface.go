package watermarks_repo

import "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"

// WatermarksRepository интерфейс доступа к watermark потоков
type WatermarksRepository interface {
	// Load возвращает watermark потока или (nil, nil), если поток
	// еще не обрабатывался
	Load(analyzerID, contractID, timeframe string) (*models.Watermark, error)
	// Save атомарно записывает watermark вместе с состоянием детектора
	Save(wm *models.Watermark) error
	// Delete удаляет watermark потока
	Delete(analyzerID, contractID, timeframe string) error
	// DeleteByAnalyzer удаляет все watermark анализатора
	DeleteByAnalyzer(analyzerID string) (int64, error)
	// List возвращает все watermark анализатора
	List(analyzerID string) ([]*models.Watermark, error)
}
