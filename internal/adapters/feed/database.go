// internal/adapters/feed/database.go
package feed

import (
	"io"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	bars_repo "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/repository/bars"
	"github.com/burningportra/projectx-sub002/internal/stream"
)

const (
	// DefaultPollInterval - пауза опроса после исчерпания источника
	DefaultPollInterval = 5 * time.Second
	// DefaultBatchSize - размер батча при чтении таблицы bars
	DefaultBatchSize = 500
)

// PollOptions - настройки опроса таблицы bars
type PollOptions struct {
	BatchSize int
	Interval  time.Duration
	// Follow - ждать новые бары после исчерпания таблицы.
	// Без него источник заканчивается на последнем баре, это режим
	// прогона истории.
	Follow bool
}

// DatabasePoller - канонический источник баров: читает таблицу bars
// батчами по возрастанию id, id строки служит индексом бара. Ошибки
// запросов возвращаются как StorageError, повторы с задержкой делает
// конвейер.
type DatabasePoller struct {
	repo       bars_repo.BarsRepository
	contractID string
	timeframe  string
	opts       PollOptions
	afterID    int64
	buf        []models.Bar
}

// NewDatabasePoller создает источник. afterID - индекс последнего
// обработанного бара (watermark), чтение начинается со следующего.
func NewDatabasePoller(repo bars_repo.BarsRepository, contractID, timeframe string, afterID int64, opts PollOptions) *DatabasePoller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	return &DatabasePoller{
		repo:       repo,
		contractID: contractID,
		timeframe:  timeframe,
		opts:       opts,
		afterID:    afterID,
	}
}

// Next возвращает следующий бар потока. io.EOF после исчерпания таблицы
// без Follow, ErrStopped при остановке во время ожидания новых баров.
func (p *DatabasePoller) Next(stop <-chan struct{}) (bar.Bar, error) {
	for {
		if len(p.buf) > 0 {
			m := p.buf[0]
			p.buf = p.buf[1:]
			p.afterID = m.ID
			return m.ToDomain(), nil
		}
		rows, err := p.repo.ListAfter(p.contractID, p.timeframe, p.afterID, p.opts.BatchSize)
		if err != nil {
			return bar.Bar{}, coreerrors.NewStorageError("bars.list_after", err)
		}
		if len(rows) == 0 {
			if !p.opts.Follow {
				return bar.Bar{}, io.EOF
			}
			select {
			case <-stop:
				return bar.Bar{}, stream.ErrStopped
			case <-time.After(p.opts.Interval):
			}
			continue
		}
		p.buf = rows
	}
}

// Close освобождает источник. Соединением владеет вызывающая сторона.
func (p *DatabasePoller) Close() error {
	return nil
}
