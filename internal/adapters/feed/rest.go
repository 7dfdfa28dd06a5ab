// internal/adapters/feed/rest.go
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/stream"
)

// DefaultRequestTimeout - таймаут одного HTTP запроса за барами
const DefaultRequestTimeout = 15 * time.Second

// RESTOptions - настройки REST источника
type RESTOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

// RESTFeed опрашивает HTTP эндпоинт с закрытыми барами. Ответ - JSON
// массив записей Record по возрастанию времени, запрос несет параметры
// contract, timeframe и after с временем последнего выданного бара.
// Индексы продолжают счетчик от watermark, бары не новее уже выданных
// молча отбрасываются. Ошибки транспорта возвращаются как StorageError,
// повторы с задержкой делает конвейер.
type RESTFeed struct {
	client     *resty.Client
	url        string
	contractID string
	timeframe  string
	interval   time.Duration
	index      int64
	lastTime   time.Time
	buf        []Record
	// fresh - прошлый опрос дал новые бары, буфер можно пополнять
	// без паузы
	fresh bool
}

// NewRESTFeed создает источник. startIndex и afterTime берутся из
// watermark потока, с чистого состояния это -1 и нулевое время.
func NewRESTFeed(url, contractID, timeframe string, startIndex int64, afterTime time.Time, opts RESTOptions) *RESTFeed {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	return &RESTFeed{
		client:     resty.New().SetTimeout(opts.Timeout),
		url:        url,
		contractID: contractID,
		timeframe:  timeframe,
		interval:   opts.Interval,
		index:      startIndex,
		lastTime:   afterTime,
		fresh:      true,
	}
}

// Next возвращает следующий бар потока. Источник живой, io.EOF не
// бывает, остановка между опросами возвращает ErrStopped.
func (f *RESTFeed) Next(stop <-chan struct{}) (bar.Bar, error) {
	for {
		for len(f.buf) > 0 {
			rec := f.buf[0]
			f.buf = f.buf[1:]
			b, err := rec.Bar(f.contractID, f.timeframe, f.index+1)
			if err != nil {
				// Битая запись не двигает курсор и вернется в
				// следующем ответе, пока за ней не появится читаемая
				return bar.Bar{}, err
			}
			if !b.Timestamp.After(f.lastTime) {
				continue
			}
			f.index++
			f.lastTime = b.Timestamp
			f.fresh = true
			return b, nil
		}
		if !f.fresh {
			select {
			case <-stop:
				return bar.Bar{}, stream.ErrStopped
			case <-time.After(f.interval):
			}
		}
		f.fresh = false
		records, err := f.fetch()
		if err != nil {
			return bar.Bar{}, err
		}
		f.buf = records
	}
}

func (f *RESTFeed) fetch() ([]Record, error) {
	resp, err := f.client.R().
		SetQueryParams(map[string]string{
			"contract":  f.contractID,
			"timeframe": f.timeframe,
			"after":     f.lastTime.UTC().Format(time.RFC3339),
		}).
		Get(f.url)
	if err != nil {
		return nil, coreerrors.NewStorageError("feed.rest_get", err)
	}
	if resp.IsError() {
		return nil, coreerrors.NewStorageError("feed.rest_get",
			fmt.Errorf("status %d: %s", resp.StatusCode(), resp.Status()))
	}
	var records []Record
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, coreerrors.NewStorageError("feed.rest_decode", err)
	}
	return records, nil
}

// Close освобождает источник
func (f *RESTFeed) Close() error {
	return nil
}
