package bars_repo

import "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"

// BarsRepository интерфейс доступа к закрытым барам
type BarsRepository interface {
	// InsertBatch вставляет бары, дубликаты по (contract_id, timeframe, ts)
	// молча пропускаются. Возвращает число реально вставленных строк.
	InsertBatch(bars []models.Bar) (int64, error)
	// ListAfter возвращает бары потока с id > afterID по возрастанию id
	ListAfter(contractID, timeframe string, afterID int64, limit int) ([]models.Bar, error)
	// Count возвращает число баров потока
	Count(contractID, timeframe string) (int64, error)
}
