// internal/transport/event_bus/events.go
package events

import (
	"sync"
	"time"
)

// EventType - тип события
type EventType string

// Константы типов событий
const (
	// EventSignalConfirmed - подтверждено начало тренда, Data: *trend.TrendSignal
	EventSignalConfirmed EventType = "signal_confirmed"
	// EventBarRejected - бар отклонен валидацией, Data: RejectedBar
	EventBarRejected EventType = "bar_rejected"
	// EventWorkerHalted - воркер ключа остановлен фатальной ошибкой, Data: HaltedWorker
	EventWorkerHalted EventType = "worker_halted"
	// EventStreamStarted - воркер ключа запущен
	EventStreamStarted EventType = "stream_started"
	// EventStreamFinished - источник ключа исчерпан
	EventStreamFinished EventType = "stream_finished"
)

// Event - структура события
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// RejectedBar - полезная нагрузка EventBarRejected
type RejectedBar struct {
	ContractID string `json:"contract_id"`
	Timeframe  string `json:"timeframe"`
	BarIndex   int64  `json:"bar_index"`
	Reason     string `json:"reason"`
}

// HaltedWorker - полезная нагрузка EventWorkerHalted
type HaltedWorker struct {
	AnalyzerID string `json:"analyzer_id"`
	ContractID string `json:"contract_id"`
	Timeframe  string `json:"timeframe"`
	Reason     string `json:"reason"`
}

// EventSubscriber - интерфейс подписчика
type EventSubscriber interface {
	HandleEvent(event Event) error
	GetName() string
	GetSubscribedEvents() []EventType
}

// BusMetrics - счетчики шины
type BusMetrics struct {
	Mu               sync.RWMutex
	EventsPublished  int64             `json:"events_published"`
	EventsProcessed  int64             `json:"events_processed"`
	EventsFailed     int64             `json:"events_failed"`
	EventsDropped    int64             `json:"events_dropped"`
	SubscribersCount map[EventType]int `json:"subscribers_count"`
}
