// internal/transport/event_bus/event_bus.go
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/burningportra/projectx-sub002/pkg/logger"
)

// EventBus - шина событий движка. Публикация неблокирующая: при полном
// буфере событие отбрасывается, обработка баров от подписчиков не зависит.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventSubscriber
	eventBuffer chan Event
	metrics     *BusMetrics
	config      EventBusConfig
	running     bool
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// EventBusConfig - конфигурация EventBus
type EventBusConfig struct {
	BufferSize    int  `json:"buffer_size"`
	WorkerCount   int  `json:"worker_count"`
	EnableLogging bool `json:"enable_logging"`
}

// DefaultConfig - конфигурация по умолчанию
var DefaultConfig = EventBusConfig{
	BufferSize:    1000,
	WorkerCount:   4,
	EnableLogging: true,
}

// NewEventBus создает новую шину событий
func NewEventBus(config ...EventBusConfig) *EventBus {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultConfig.BufferSize
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = DefaultConfig.WorkerCount
	}

	return &EventBus{
		subscribers: make(map[EventType][]EventSubscriber),
		eventBuffer: make(chan Event, cfg.BufferSize),
		metrics: &BusMetrics{
			SubscribersCount: make(map[EventType]int),
		},
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start запускает обработчиков событий
func (b *EventBus) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	for i := 0; i < b.config.WorkerCount; i++ {
		b.wg.Add(1)
		go b.eventWorker(i)
	}

	if b.config.EnableLogging {
		logger.Info("🚀 EventBus запущен с %d обработчиками", b.config.WorkerCount)
	}
}

// Stop останавливает шину и дожидается обработчиков
func (b *EventBus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopChan)
	b.wg.Wait()

	if b.config.EnableLogging {
		logger.Info("🛑 EventBus остановлен")
	}
}

// Subscribe подписывает обработчик на тип события
func (b *EventBus) Subscribe(eventType EventType, subscriber EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	for _, et := range subscriber.GetSubscribedEvents() {
		if et == eventType {
			found = true
			break
		}
	}
	if !found {
		logger.Warn("⚠️ Подписчик %s не объявил событие %s", subscriber.GetName(), eventType)
		return
	}

	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
	b.metrics.Mu.Lock()
	b.metrics.SubscribersCount[eventType] = len(b.subscribers[eventType])
	b.metrics.Mu.Unlock()

	if b.config.EnableLogging {
		logger.Debug("✅ %s подписался на %s", subscriber.GetName(), eventType)
	}
}

// Unsubscribe отписывает обработчик от типа события
func (b *EventBus) Unsubscribe(eventType EventType, subscriber EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, exists := b.subscribers[eventType]
	if !exists {
		return
	}
	for i, sub := range subs {
		if sub == subscriber {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			b.metrics.Mu.Lock()
			b.metrics.SubscribersCount[eventType] = len(b.subscribers[eventType])
			b.metrics.Mu.Unlock()
			return
		}
	}
}

// Publish публикует событие. Не блокируется: при полном буфере событие
// отбрасывается с предупреждением.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("EventBus.Publish: bus is not running")
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventBuffer <- event:
		b.metrics.Mu.Lock()
		b.metrics.EventsPublished++
		b.metrics.Mu.Unlock()
		return nil
	default:
		b.metrics.Mu.Lock()
		b.metrics.EventsDropped++
		b.metrics.Mu.Unlock()
		if b.config.EnableLogging {
			logger.Warn("⚠️ Буфер событий полон, событие отброшено: %s", event.Type)
		}
		return fmt.Errorf("EventBus.Publish: event buffer is full")
	}
}

// PublishSync публикует событие синхронно, минуя буфер
func (b *EventBus) PublishSync(event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return b.processEvent(event)
}

// GetMetrics возвращает счетчики шины
func (b *EventBus) GetMetrics() *BusMetrics {
	return b.metrics
}

func (b *EventBus) eventWorker(id int) {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.eventBuffer:
			if err := b.processEvent(event); err != nil && b.config.EnableLogging {
				logger.Error("❌ [EventWorker %d] %s: %v", id, event.Type, err)
			}
		case <-b.stopChan:
			// Добираем буфер перед выходом, события не теряются при штатной остановке
			for {
				select {
				case event := <-b.eventBuffer:
					_ = b.processEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) processEvent(event Event) error {
	b.mu.RLock()
	subs := make([]EventSubscriber, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.RUnlock()

	var firstErr error
	for _, sub := range subs {
		if err := sub.HandleEvent(event); err != nil {
			b.metrics.Mu.Lock()
			b.metrics.EventsFailed++
			b.metrics.Mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("EventBus.processEvent: %s: %w", sub.GetName(), err)
			}
			continue
		}
	}
	b.metrics.Mu.Lock()
	b.metrics.EventsProcessed++
	b.metrics.Mu.Unlock()
	return firstErr
}
