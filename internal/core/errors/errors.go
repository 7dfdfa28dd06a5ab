// internal/core/errors/errors.go
package errors

import "fmt"

// DataError - ошибка данных бара (NaN, нарушение high/low, пустые поля).
// Бар с такой ошибкой пропускается, watermark через него не продвигается,
// если политика skip-and-advance не включена явно.
type DataError struct {
	Reason    string
	BarIndex  int64
	BarTime   string
	Contract  string
	Timeframe string
}

func (e *DataError) Error() string {
	if e.Contract != "" {
		return fmt.Sprintf("data error [%s/%s] bar #%d: %s", e.Contract, e.Timeframe, e.BarIndex, e.Reason)
	}
	return fmt.Sprintf("data error bar #%d: %s", e.BarIndex, e.Reason)
}

// NewDataError создает новую ошибку данных
func NewDataError(barIndex int64, format string, args ...interface{}) *DataError {
	return &DataError{
		BarIndex: barIndex,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// WithStream добавляет идентификатор потока к ошибке
func (e *DataError) WithStream(contract, timeframe string) *DataError {
	return &DataError{
		Reason:    e.Reason,
		BarIndex:  e.BarIndex,
		BarTime:   e.BarTime,
		Contract:  contract,
		Timeframe: timeframe,
	}
}

// OutOfOrderError - бар пришел не по порядку (index/timestamp не выше watermark).
// Ожидаемая ситуация при at-least-once доставке, не повод для алерта.
type OutOfOrderError struct {
	BarIndex       int64
	WatermarkIndex int64
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out of order: bar #%d <= watermark #%d", e.BarIndex, e.WatermarkIndex)
}

// NewOutOfOrderError создает ошибку нарушения порядка
func NewOutOfOrderError(barIndex, watermarkIndex int64) *OutOfOrderError {
	return &OutOfOrderError{BarIndex: barIndex, WatermarkIndex: watermarkIndex}
}

// StorageError - ошибка записи сигнала или watermark.
// Обрабатывается повторами с экспоненциальной задержкой: состояние не
// считается продвинутым, пока запись не подтверждена.
type StorageError struct {
	Op      string
	Wrapped error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Wrapped)
}

func (e *StorageError) Unwrap() error {
	return e.Wrapped
}

// NewStorageError оборачивает ошибку хранилища
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Wrapped: err}
}

// InvariantError - нарушение инварианта состояния детектора.
// Фатальна для воркера одной пары (contract, timeframe): воркер
// останавливается, watermark остается на последнем хорошем значении,
// остальные пары продолжают работать.
type InvariantError struct {
	Reason   string
	BarIndex int64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("state invariant violated at bar #%d: %s", e.BarIndex, e.Reason)
}

// NewInvariantError создает ошибку нарушения инварианта
func NewInvariantError(barIndex int64, format string, args ...interface{}) *InvariantError {
	return &InvariantError{
		BarIndex: barIndex,
		Reason:   fmt.Sprintf(format, args...),
	}
}
