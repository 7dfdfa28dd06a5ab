// internal/infrastructure/persistence/redis_storage/channels.go
package redis_storage

import "fmt"

// Каналы и ключи сигналов в Redis. Подписчики слушают либо общий канал,
// либо канал конкретного потока.
const (
	// SignalsChannel - общий канал всех подтвержденных сигналов
	SignalsChannel = "trendstart:signals"

	keyPrefix = "trendstart:"
)

// StreamChannel возвращает канал сигналов одного потока
func StreamChannel(contractID, timeframe string) string {
	return fmt.Sprintf("%ssignals:%s:%s", keyPrefix, contractID, timeframe)
}

// LastSignalKey возвращает ключ последнего сигнала потока.
// Ключ перезаписывается при каждом сигнале, подписчики читают его
// на старте, чтобы показать состояние до первого живого сообщения.
func LastSignalKey(contractID, timeframe string) string {
	return fmt.Sprintf("%slast:%s:%s", keyPrefix, contractID, timeframe)
}
