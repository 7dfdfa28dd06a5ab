// internal/infrastructure/persistence/redis_storage/signal_publisher.go
package redis_storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	events "github.com/burningportra/projectx-sub002/internal/transport/event_bus"
	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/go-redis/redis/v8"
)

// SignalPublisher ретранслирует подтвержденные сигналы в Redis.
// Подписывается на шину событий и публикует каждый сигнал в общий канал
// и в канал потока. Redis здесь - best-effort доставка для наблюдателей,
// источником истины остается postgres.
type SignalPublisher struct {
	client *redis.Client
	ctx    context.Context
}

// NewSignalPublisher создает публикатор сигналов
func NewSignalPublisher(client *redis.Client) *SignalPublisher {
	return &SignalPublisher{
		client: client,
		ctx:    context.Background(),
	}
}

// Publish отправляет сигнал в каналы и перезаписывает ключ последнего сигнала
func (p *SignalPublisher) Publish(sig *trend.TrendSignal) error {
	if p.client == nil {
		return fmt.Errorf("SignalPublisher.Publish: redis client is not initialized")
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("SignalPublisher.Publish: marshal: %w", err)
	}

	streamChannel := StreamChannel(sig.ContractID, sig.Timeframe)

	// Pipeline: оба канала и ключ последнего сигнала уходят за один RTT
	pipe := p.client.Pipeline()
	pipe.Publish(p.ctx, SignalsChannel, payload)
	pipe.Publish(p.ctx, streamChannel, payload)
	pipe.Set(p.ctx, LastSignalKey(sig.ContractID, sig.Timeframe), payload, 0)

	if _, err := pipe.Exec(p.ctx); err != nil {
		return fmt.Errorf("SignalPublisher.Publish: %w", err)
	}

	logger.Debug("📡 Сигнал опубликован в Redis: %s %s %s, bar=%d",
		sig.ContractID, sig.Timeframe, sig.Type, sig.BarIndex)
	return nil
}

// HandleEvent обрабатывает событие шины с подтвержденным сигналом
func (p *SignalPublisher) HandleEvent(event events.Event) error {
	sig, ok := event.Data.(*trend.TrendSignal)
	if !ok {
		return fmt.Errorf("SignalPublisher.HandleEvent: unexpected payload %T", event.Data)
	}
	return p.Publish(sig)
}

// GetName возвращает имя подписчика шины
func (p *SignalPublisher) GetName() string {
	return "redis_signal_publisher"
}

// GetSubscribedEvents возвращает события, которые слушает публикатор
func (p *SignalPublisher) GetSubscribedEvents() []events.EventType {
	return []events.EventType{events.EventSignalConfirmed}
}
