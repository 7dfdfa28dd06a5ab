package signals_repo

import "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"

// SignalsRepository интерфейс доступа к подтвержденным сигналам
type SignalsRepository interface {
	// Insert вставляет сигнал. Возвращает false без ошибки, если сигнал
	// с тем же ключом дедупликации уже записан.
	Insert(sig *models.Signal) (bool, error)
	// ListByStream возвращает последние сигналы потока, свежие первыми
	ListByStream(analyzerID, contractID, timeframe string, limit int) ([]*models.Signal, error)
	// DeleteByStream удаляет сигналы потока, возвращает число удаленных
	DeleteByStream(analyzerID, contractID, timeframe string) (int64, error)
	// DeleteByAnalyzer удаляет все сигналы анализатора
	DeleteByAnalyzer(analyzerID string) (int64, error)
}
