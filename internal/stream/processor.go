// internal/stream/processor.go
package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/metrics"
	events "github.com/burningportra/projectx-sub002/internal/transport/event_bus"
	"github.com/burningportra/projectx-sub002/pkg/logger"
)

// ProcessorConfig - зависимости воркера одного ключа
type ProcessorConfig struct {
	Key        StreamKey
	Detector   *trend.Detector
	Source     BarSource
	Sink       SignalSink
	Watermarks WatermarkStore
	// Events - шина событий, допускается nil
	Events *events.EventBus
	Policy DataErrorPolicy
	Retry  RetryConfig
}

// Processor - воркер одного потока: восстанавливает состояние из
// watermark, сворачивает бары в детектор, пишет сигналы до watermark
// и переживает перезапуск в любой точке без потери и дублей эффектов.
type Processor struct {
	cfg   ProcessorConfig
	state trend.PivotState
	wm    Watermark
}

// NewProcessor создает воркер с проверкой зависимостей
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if err := cfg.Key.Validate(); err != nil {
		return nil, fmt.Errorf("NewProcessor: %w", err)
	}
	if cfg.Detector == nil || cfg.Source == nil || cfg.Sink == nil || cfg.Watermarks == nil {
		return nil, fmt.Errorf("NewProcessor: missing dependency for %s", cfg.Key)
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyHalt
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("NewProcessor: %w", err)
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry = DefaultRetry
	}
	return &Processor{cfg: cfg}, nil
}

// Key возвращает ключ потока
func (p *Processor) Key() StreamKey {
	return p.cfg.Key
}

// Watermark возвращает текущий watermark воркера
func (p *Processor) Watermark() Watermark {
	return p.wm
}

// State возвращает текущее состояние детектора
func (p *Processor) State() trend.PivotState {
	return p.state
}

// Run обрабатывает поток до исчерпания источника, фатальной ошибки или
// остановки. Возвращает nil при io.EOF источника и при остановке.
func (p *Processor) Run(stop <-chan struct{}) error {
	if err := p.restore(stop); err != nil {
		if errors.Is(err, ErrStopped) {
			return nil
		}
		return err
	}
	logger.Info("▶️ Поток %s: старт с watermark %d", p.cfg.Key, p.wm.BarIndex)

	for {
		b, err := p.nextBar(stop)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("🏁 Поток %s: источник исчерпан на баре %d", p.cfg.Key, p.wm.BarIndex)
				return nil
			}
			if errors.Is(err, ErrStopped) {
				return nil
			}
			// Источник не собрал бар (битая строка файла, мусор в
			// сообщении) - та же политика, что и для невалидного бара
			var derr *coreerrors.DataError
			if errors.As(err, &derr) {
				if rerr := p.rejectBar(derr); rerr != nil {
					return fmt.Errorf("Processor.Run: %s: %w", p.cfg.Key, rerr)
				}
				continue
			}
			return fmt.Errorf("Processor.Run: %s: %w", p.cfg.Key, err)
		}
		if err := p.handleBar(b, stop); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			return fmt.Errorf("Processor.Run: %s: %w", p.cfg.Key, err)
		}
	}
}

// restore загружает watermark и состояние. Незнакомый ключ начинает
// с чистого состояния и watermark -1.
func (p *Processor) restore(stop <-chan struct{}) error {
	var wm *Watermark
	err := p.retryStorage("watermarks.load", stop, func() error {
		var err error
		wm, err = p.cfg.Watermarks.Load(p.cfg.Key)
		return err
	})
	if err != nil {
		return err
	}
	if wm == nil {
		p.wm = FreshWatermark(p.cfg.Key)
		p.state = p.cfg.Detector.NewState()
		return nil
	}
	st, err := p.cfg.Detector.DecodeState(wm.State)
	if err != nil {
		return fmt.Errorf("Processor.restore: state of %s: %w", p.cfg.Key, err)
	}
	p.wm = *wm
	p.state = st
	return nil
}

func (p *Processor) nextBar(stop <-chan struct{}) (bar.Bar, error) {
	var b bar.Bar
	err := p.retryStorage("source.next", stop, func() error {
		var err error
		b, err = p.cfg.Source.Next(stop)
		return err
	})
	return b, err
}

// handleBar проводит один бар через весь конвейер. Порядок записи
// фиксирован: сначала сигнал, затем watermark. Падение между ними
// переигрывает бар после рестарта, а дедупликация вставки снимает дубль.
func (p *Processor) handleBar(b bar.Bar, stop <-chan struct{}) error {
	if derr := p.validateBar(b); derr != nil {
		return p.rejectBar(derr)
	}

	// Бары не новее watermark - ожидаемый шум at-least-once доставки
	if b.Index <= p.wm.BarIndex {
		metrics.BarsOutOfOrder.WithLabelValues(p.cfg.Key.ContractID, p.cfg.Key.Timeframe).Inc()
		logger.Debug("⏭ Поток %s: бар %d не новее watermark %d, отклонен", p.cfg.Key, b.Index, p.wm.BarIndex)
		return nil
	}
	// Индекс новее, а время нет: источники разошлись
	if p.wm.BarIndex >= 0 && !b.Timestamp.After(p.wm.BarTimestamp) {
		derr := coreerrors.NewDataError(b.Index, "timestamp %s not after watermark %s",
			b.Timestamp.Format(time.RFC3339), p.wm.BarTimestamp.Format(time.RFC3339)).
			WithStream(p.cfg.Key.ContractID, p.cfg.Key.Timeframe)
		return p.rejectBar(derr)
	}

	next, sig, err := p.cfg.Detector.Step(p.state, b)
	if err != nil {
		// InvariantError: состояние подозрительно, воркер ключа останавливается
		return err
	}

	if sig != nil {
		if err := p.persistSignal(sig, stop); err != nil {
			return err
		}
	}
	if err := p.saveWatermark(next, b, stop); err != nil {
		return err
	}
	p.state = next

	metrics.BarsProcessed.WithLabelValues(p.cfg.Key.ContractID, p.cfg.Key.Timeframe).Inc()
	metrics.WatermarkBarIndex.WithLabelValues(p.cfg.Key.ContractID, p.cfg.Key.Timeframe).Set(float64(b.Index))
	return nil
}

func (p *Processor) validateBar(b bar.Bar) *coreerrors.DataError {
	if derr := b.Validate(); derr != nil {
		return derr.WithStream(p.cfg.Key.ContractID, p.cfg.Key.Timeframe)
	}
	if b.ContractID != p.cfg.Key.ContractID || b.Timeframe != p.cfg.Key.Timeframe {
		return coreerrors.NewDataError(b.Index, "bar of %s/%s on stream %s",
			b.ContractID, b.Timeframe, p.cfg.Key).
			WithStream(p.cfg.Key.ContractID, p.cfg.Key.Timeframe)
	}
	return nil
}

// rejectBar применяет политику битых данных. Watermark не продвигается
// в обоих вариантах: битый бар не считается обработанным.
func (p *Processor) rejectBar(derr *coreerrors.DataError) error {
	metrics.BarsRejected.WithLabelValues(p.cfg.Key.ContractID, p.cfg.Key.Timeframe, "invalid_data").Inc()
	p.publish(events.EventBarRejected, events.RejectedBar{
		ContractID: p.cfg.Key.ContractID,
		Timeframe:  p.cfg.Key.Timeframe,
		BarIndex:   derr.BarIndex,
		Reason:     derr.Reason,
	})
	if p.cfg.Policy == PolicySkip {
		logger.Warn("⚠️ Поток %s: бар %d отклонен: %v", p.cfg.Key, derr.BarIndex, derr)
		return nil
	}
	logger.Error("❌ Поток %s: битый бар %d, воркер остановлен: %v", p.cfg.Key, derr.BarIndex, derr)
	return derr
}

func (p *Processor) persistSignal(sig *trend.TrendSignal, stop <-chan struct{}) error {
	var inserted bool
	err := p.retryStorage("signals.insert", stop, func() error {
		var err error
		inserted, err = p.cfg.Sink.Insert(sig)
		return err
	})
	if err != nil {
		return err
	}
	if !inserted {
		metrics.SignalsDuplicate.WithLabelValues(sig.ContractID, sig.Timeframe).Inc()
		logger.Debug("♻️ Поток %s: сигнал %s@%d уже записан, дубль отброшен", p.cfg.Key, sig.Type, sig.BarIndex)
		return nil
	}
	metrics.SignalsConfirmed.WithLabelValues(sig.ContractID, sig.Timeframe, string(sig.Type), sig.RuleName).Inc()
	logger.Signal(sig.ContractID, sig.Timeframe, string(sig.Type), sig.Price, sig.BarIndex, sig.TriggerIndex)
	p.publish(events.EventSignalConfirmed, sig)
	return nil
}

func (p *Processor) saveWatermark(next trend.PivotState, b bar.Bar, stop <-chan struct{}) error {
	raw, err := trend.EncodeState(next)
	if err != nil {
		return fmt.Errorf("Processor.saveWatermark: %w", err)
	}
	wm := Watermark{
		Key:          p.cfg.Key,
		BarIndex:     b.Index,
		BarTimestamp: b.Timestamp,
		State:        raw,
		UpdatedAt:    time.Now(),
	}
	if err := p.retryStorage("watermarks.save", stop, func() error {
		return p.cfg.Watermarks.Save(&wm)
	}); err != nil {
		return err
	}
	p.wm = wm
	return nil
}

// retryStorage повторяет операцию с экспоненциальной задержкой, пока она
// возвращает StorageError. Остальные ошибки отдаются сразу. Остановка
// между попытками возвращает ErrStopped.
func (p *Processor) retryStorage(op string, stop <-chan struct{}, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var serr *coreerrors.StorageError
		if !errors.As(err, &serr) {
			return err
		}
		if p.cfg.Retry.MaxAttempts > 0 && attempt >= p.cfg.Retry.MaxAttempts {
			return fmt.Errorf("Processor.retryStorage: %s: %d attempts: %w", op, attempt, err)
		}
		delay := p.cfg.Retry.DelayFor(attempt)
		metrics.StorageRetries.WithLabelValues(op).Inc()
		logger.Warn("🔁 Поток %s: %s упал (попытка %d), повтор через %s: %v", p.cfg.Key, op, attempt, delay, err)
		select {
		case <-stop:
			return ErrStopped
		case <-time.After(delay):
		}
	}
}

func (p *Processor) publish(t events.EventType, data interface{}) {
	if p.cfg.Events == nil {
		return
	}
	_ = p.cfg.Events.Publish(events.Event{
		Type:   t,
		Source: p.cfg.Key.String(),
		Data:   data,
	})
}
