// internal/adapters/feed/websocket.go
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/burningportra/projectx-sub002/internal/core/domain/bar"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/stream"
	"github.com/burningportra/projectx-sub002/pkg/logger"
)

const (
	// WSHandshakeTimeout - таймаут установки соединения
	WSHandshakeTimeout = 10 * time.Second
	// WSReadTimeout - максимум тишины от сервера до переподключения
	WSReadTimeout = 90 * time.Second
	// WSWriteTimeout - таймаут отправки подписки
	WSWriteTimeout = 10 * time.Second
	// WSReconnectDelay - пауза перед переподключением
	WSReconnectDelay = 5 * time.Second
)

// subscribeRequest - сообщение подписки на поток закрытых баров
type subscribeRequest struct {
	Action    string `json:"action"`
	Contract  string `json:"contract"`
	Timeframe string `json:"timeframe"`
}

// WSFeed читает закрытые бары из WebSocket потока. Сообщение - JSON
// объект Record, служебные сообщения без поля timestamp пропускаются.
// Обрывы соединения источник чинит сам с паузой WSReconnectDelay,
// индексы продолжают счетчик от watermark. Остановка отрабатывает
// между сообщениями, долгое чтение ограничено WSReadTimeout.
type WSFeed struct {
	url        string
	contractID string
	timeframe  string
	conn       *websocket.Conn
	index      int64
	lastTime   time.Time
}

// NewWSFeed создает источник. startIndex и afterTime берутся из
// watermark потока, соединение устанавливается при первом Next.
func NewWSFeed(url, contractID, timeframe string, startIndex int64, afterTime time.Time) *WSFeed {
	return &WSFeed{
		url:        url,
		contractID: contractID,
		timeframe:  timeframe,
		index:      startIndex,
		lastTime:   afterTime,
	}
}

// Next возвращает следующий бар потока. Источник живой, io.EOF не
// бывает, остановка возвращает ErrStopped.
func (f *WSFeed) Next(stop <-chan struct{}) (bar.Bar, error) {
	for {
		select {
		case <-stop:
			f.closeConn()
			return bar.Bar{}, stream.ErrStopped
		default:
		}
		if f.conn == nil {
			if err := f.connect(); err != nil {
				logger.Warn("⚠️ WS %s/%s: %v, переподключение через %s",
					f.contractID, f.timeframe, err, WSReconnectDelay)
				select {
				case <-stop:
					return bar.Bar{}, stream.ErrStopped
				case <-time.After(WSReconnectDelay):
				}
				continue
			}
		}

		_ = f.conn.SetReadDeadline(time.Now().Add(WSReadTimeout))
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			logger.Warn("⚠️ WS %s/%s: чтение оборвалось: %v", f.contractID, f.timeframe, err)
			f.closeConn()
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			return bar.Bar{}, coreerrors.NewDataError(f.index+1, "bad message: %v", err).
				WithStream(f.contractID, f.timeframe)
		}
		// Ack подписки и heartbeat бара не несут
		if rec.Timestamp == "" {
			logger.Debug("WS %s/%s: служебное сообщение пропущено", f.contractID, f.timeframe)
			continue
		}
		b, err := rec.Bar(f.contractID, f.timeframe, f.index+1)
		if err != nil {
			return bar.Bar{}, err
		}
		if !b.Timestamp.After(f.lastTime) {
			continue
		}
		f.index++
		f.lastTime = b.Timestamp
		return b, nil
	}
}

func (f *WSFeed) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: WSHandshakeTimeout}
	conn, _, err := dialer.Dial(f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{
		Action:    "subscribe",
		Contract:  f.contractID,
		Timeframe: f.timeframe,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	f.conn = conn
	logger.Info("🔌 WS %s/%s: подключен к %s", f.contractID, f.timeframe, f.url)
	return nil
}

func (f *WSFeed) closeConn() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// Close разрывает соединение
func (f *WSFeed) Close() error {
	f.closeConn()
	return nil
}
