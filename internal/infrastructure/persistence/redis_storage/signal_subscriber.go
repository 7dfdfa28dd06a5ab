// internal/infrastructure/persistence/redis_storage/signal_subscriber.go
package redis_storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/go-redis/redis/v8"
)

// SignalSubscriber слушает каналы сигналов в Redis и отдает
// декодированные сигналы в Go-канал. Используется наблюдателями,
// которым не нужен доступ к postgres.
type SignalSubscriber struct {
	client *redis.Client

	mu      sync.Mutex
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	out     chan *trend.TrendSignal
	running bool
}

// NewSignalSubscriber создает подписчик сигналов
func NewSignalSubscriber(client *redis.Client) *SignalSubscriber {
	return &SignalSubscriber{client: client}
}

// Listen подписывается на каналы и возвращает канал сигналов.
// Канал закрывается после Stop. Битые сообщения пропускаются с warn-логом.
func (s *SignalSubscriber) Listen(channels ...string) (<-chan *trend.TrendSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("SignalSubscriber.Listen: already listening")
	}
	if s.client == nil {
		return nil, fmt.Errorf("SignalSubscriber.Listen: redis client is not initialized")
	}
	if len(channels) == 0 {
		channels = []string{SignalsChannel}
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, channels...)

	// Дожидаемся подтверждения подписки, чтобы не терять первые сообщения
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("SignalSubscriber.Listen: subscribe: %w", err)
	}

	s.pubsub = pubsub
	s.cancel = cancel
	s.out = make(chan *trend.TrendSignal, 64)
	s.running = true

	go s.pump(pubsub.Channel())

	logger.Info("📡 Подписка на каналы сигналов: %v", channels)
	return s.out, nil
}

// pump декодирует сообщения до закрытия подписки
func (s *SignalSubscriber) pump(messages <-chan *redis.Message) {
	defer close(s.out)

	for msg := range messages {
		var sig trend.TrendSignal
		if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
			logger.Warn("⚠️ SignalSubscriber: битое сообщение в %s: %v", msg.Channel, err)
			continue
		}
		s.out <- &sig
	}
}

// LastSignals возвращает последние сигналы перечисленных потоков.
// Потоки без единого сигнала пропускаются.
func (s *SignalSubscriber) LastSignals(pairs [][2]string) ([]*trend.TrendSignal, error) {
	if s.client == nil {
		return nil, fmt.Errorf("SignalSubscriber.LastSignals: redis client is not initialized")
	}

	ctx := context.Background()
	signals := make([]*trend.TrendSignal, 0, len(pairs))

	for _, pair := range pairs {
		raw, err := s.client.Get(ctx, LastSignalKey(pair[0], pair[1])).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("SignalSubscriber.LastSignals: %w", err)
		}

		var sig trend.TrendSignal
		if err := json.Unmarshal([]byte(raw), &sig); err != nil {
			logger.Warn("⚠️ SignalSubscriber: битый ключ последнего сигнала %s/%s: %v",
				pair[0], pair[1], err)
			continue
		}
		signals = append(signals, &sig)
	}

	return signals, nil
}

// Stop закрывает подписку и канал сигналов
func (s *SignalSubscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	err := s.pubsub.Close()
	s.pubsub = nil
	s.running = false

	if err != nil {
		return fmt.Errorf("SignalSubscriber.Stop: %w", err)
	}
	return nil
}
