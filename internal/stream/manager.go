// internal/stream/manager.go
package stream

import (
	"errors"
	"fmt"
	"sync"

	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/metrics"
	events "github.com/burningportra/projectx-sub002/internal/transport/event_bus"
	"github.com/burningportra/projectx-sub002/pkg/logger"
)

// Manager - пул воркеров потоков, по одному на ключ. Состояния ключей
// не пересекаются, дедупликация в хранилище, поэтому воркеры полностью
// независимы и общих блокировок на горячем пути нет. Остановка одного
// ключа не трогает остальные.
type Manager struct {
	events *events.EventBus

	mu      sync.Mutex
	procs   []*Processor
	index   map[string]struct{}
	halted  map[string]error
	running bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager создает менеджер потоков. Шина событий опциональна.
func NewManager(bus *events.EventBus) *Manager {
	return &Manager{
		events:   bus,
		index:    make(map[string]struct{}),
		halted:   make(map[string]error),
		stopChan: make(chan struct{}),
	}
}

// Add регистрирует воркер до запуска. Повторный ключ - ошибка конфигурации.
func (m *Manager) Add(p *Processor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("Manager.Add: manager already started")
	}
	key := p.Key().String()
	if _, dup := m.index[key]; dup {
		return fmt.Errorf("Manager.Add: duplicate stream %s", key)
	}
	m.index[key] = struct{}{}
	m.procs = append(m.procs, p)
	return nil
}

// Start запускает по горутине на каждый зарегистрированный поток
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("Manager.Start: already started")
	}
	if len(m.procs) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("Manager.Start: no streams registered")
	}
	m.running = true
	procs := make([]*Processor, len(m.procs))
	copy(procs, m.procs)
	m.mu.Unlock()

	for _, p := range procs {
		m.wg.Add(1)
		go m.runWorker(p)
	}
	logger.Info("🚀 Запущено потоков: %d", len(procs))
	return nil
}

// Stop останавливает все воркеры и дожидается их завершения
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logger.Info("🛑 Все потоки остановлены")
}

// Wait блокируется до завершения всех воркеров. Для конечных источников
// (бэкфилл из файла) это штатный способ дождаться конца обработки.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Halted возвращает снимок потоков, остановленных с ошибкой
func (m *Manager) Halted() map[string]error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]error, len(m.halted))
	for k, v := range m.halted {
		out[k] = v
	}
	return out
}

func (m *Manager) runWorker(p *Processor) {
	defer m.wg.Done()
	key := p.Key()
	defer func() {
		if err := p.cfg.Source.Close(); err != nil {
			logger.Warn("⚠️ Поток %s: закрытие источника: %v", key, err)
		}
	}()

	m.publish(events.EventStreamStarted, key.String())
	err := p.Run(m.stopChan)
	if err != nil {
		m.mu.Lock()
		m.halted[key.String()] = err
		m.mu.Unlock()

		metrics.WorkersHalted.WithLabelValues(classifyHalt(err)).Inc()
		logger.Error("⛔ Поток %s остановлен: %v", key, err)
		m.publish(events.EventWorkerHalted, events.HaltedWorker{
			AnalyzerID: key.AnalyzerID,
			ContractID: key.ContractID,
			Timeframe:  key.Timeframe,
			Reason:     err.Error(),
		})
		return
	}
	m.publish(events.EventStreamFinished, key.String())
}

func classifyHalt(err error) string {
	var ierr *coreerrors.InvariantError
	var derr *coreerrors.DataError
	var serr *coreerrors.StorageError
	switch {
	case errors.As(err, &ierr):
		return "invariant"
	case errors.As(err, &derr):
		return "data"
	case errors.As(err, &serr):
		return "storage"
	default:
		return "other"
	}
}

func (m *Manager) publish(t events.EventType, data interface{}) {
	if m.events == nil {
		return
	}
	_ = m.events.Publish(events.Event{Type: t, Source: "stream_manager", Data: data})
}
