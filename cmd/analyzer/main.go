// cmd/analyzer/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/burningportra/projectx-sub002/internal/adapters/feed"
	"github.com/burningportra/projectx-sub002/internal/config"
	"github.com/burningportra/projectx-sub002/internal/core/domain/trend"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/cache/redis"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres"
	bars_repo "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/repository/bars"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/redis_storage"
	"github.com/burningportra/projectx-sub002/internal/metrics"
	"github.com/burningportra/projectx-sub002/internal/stream"
	events "github.com/burningportra/projectx-sub002/internal/transport/event_bus"
	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/jmoiron/sqlx"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Некорректная конфигурация: %v", err)
	}

	if err := logger.InitGlobal(cfg.LogFile, cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}

	// Выводим информацию о конфигурации
	printHeader("АНАЛИЗАТОР НАЧАЛА ТРЕНДА")
	fmt.Printf("🔧 Конфигурация:\n")
	fmt.Printf("   Анализатор: %s\n", cfg.AnalyzerID)
	fmt.Printf("   Потоки (%d): %s\n", len(cfg.Streams), formatStreams(cfg.Streams))
	fmt.Printf("   Источник баров: %s\n", cfg.FeedKind)
	switch cfg.FeedKind {
	case config.FeedCSV, config.FeedParquet:
		fmt.Printf("   Шаблон файлов: %s\n", cfg.FeedPath)
	case config.FeedREST, config.FeedWebSocket:
		fmt.Printf("   URL источника: %s\n", cfg.FeedURL)
	case config.FeedDatabase:
		fmt.Printf("   Опрос БД: каждые %s, пачки по %d, follow=%v\n",
			cfg.FeedInterval, cfg.FeedBatchSize, cfg.FeedFollow)
	}
	fmt.Printf("   Политика битых баров: %s\n", cfg.DataErrorPolicy)
	fmt.Printf("   Детектор: lookback=%d, tolerance=%.2f, min_inside=%d, momentum=%.4f\n",
		cfg.Detector.Lookback, cfg.Detector.ToleranceFrac,
		cfg.Detector.MinInsideBars, cfg.Detector.MomentumMinFrac)
	fmt.Println()

	// Переменные для статистики
	startTime := time.Now()
	stats := &statsCollector{}

	// PostgreSQL вместе с миграциями
	fmt.Println("🐘 Подключение к PostgreSQL...")
	db, err := postgres.Connect(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Не удалось подключиться к PostgreSQL: %v", err)
	}

	// Redis нужен только наблюдателям, анализатор работает и без него
	var redisService *redis.RedisService
	if cfg.RedisEnabled {
		redisService = redis.NewRedisService(&cfg.Redis)
		if err := redisService.Start(); err != nil {
			log.Fatalf("Не удалось подключиться к Redis: %v", err)
		}
	} else {
		fmt.Println("📴 Redis отключен, сигналы останутся только в PostgreSQL")
	}

	// Шина событий и подписчики
	bus := events.NewEventBus(events.EventBusConfig{
		BufferSize:    cfg.EventBusBuffer,
		WorkerCount:   cfg.EventBusWorkers,
		EnableLogging: true,
	})
	for _, et := range stats.GetSubscribedEvents() {
		bus.Subscribe(et, stats)
	}
	if redisService != nil {
		publisher := redis_storage.NewSignalPublisher(redisService.GetClient())
		bus.Subscribe(events.EventSignalConfirmed, publisher)
	}
	bus.Start()

	if cfg.MetricsEnabled {
		metrics.Serve(cfg.MetricsAddr)
		fmt.Printf("📊 Метрики Prometheus: http://localhost%s/metrics\n", cfg.MetricsAddr)
	}

	signalStore := postgres.NewSignalStore(db)
	watermarkStore := postgres.NewWatermarkStore(db)

	// Собираем по воркеру на каждый поток
	manager := stream.NewManager(bus)
	for _, spec := range cfg.Streams {
		key := stream.StreamKey{
			AnalyzerID: cfg.AnalyzerID,
			ContractID: spec.ContractID,
			Timeframe:  spec.Timeframe,
		}

		detector, err := trend.NewDetector(cfg.AnalyzerID, cfg.Detector)
		if err != nil {
			log.Fatalf("Поток %s: %v", key, err)
		}
		source, err := buildSource(cfg, db, watermarkStore, key)
		if err != nil {
			log.Fatalf("Поток %s: %v", key, err)
		}

		p, err := stream.NewProcessor(stream.ProcessorConfig{
			Key:        key,
			Detector:   detector,
			Source:     source,
			Sink:       signalStore,
			Watermarks: watermarkStore,
			Events:     bus,
			Policy:     cfg.DataErrorPolicy,
			Retry:      cfg.Retry,
		})
		if err != nil {
			log.Fatalf("Поток %s: %v", key, err)
		}
		if err := manager.Add(p); err != nil {
			log.Fatalf("Поток %s: %v", key, err)
		}
	}

	if err := manager.Start(); err != nil {
		log.Fatalf("Не удалось запустить воркеры: %v", err)
	}

	fmt.Println()
	fmt.Println("🎮 Управление:")
	fmt.Println("   Ctrl+C - остановить анализатор")
	printSeparator()
	fmt.Println()

	// Горутина для периодического вывода статистики
	statsStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.StatsInterval)
		defer ticker.Stop()

		iteration := 1
		for {
			select {
			case <-ticker.C:
				printStats(startTime, stats, bus.GetMetrics(), len(cfg.Streams), iteration)
				iteration++
			case <-statsStop:
				return
			}
		}
	}()

	// Ждем либо сигнал ОС, либо естественное исчерпание всех источников:
	// прогон по файлам без follow заканчивается сам
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		manager.Wait()
		close(done)
	}()

	select {
	case sig := <-stopChan:
		fmt.Printf("\n🛑 Получен сигнал %v, останавливаем воркеры...\n", sig)
	case <-done:
		fmt.Println("\n🏁 Все источники исчерпаны")
	}
	close(statsStop)

	manager.Stop()
	bus.Stop()

	fmt.Println()
	printHeader("Завершение работы")
	fmt.Printf("⏱️  Время работы: %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("📈 Подтверждено сигналов: %d\n", atomic.LoadInt64(&stats.signals))
	fmt.Printf("🚫 Отклонено баров: %d\n", atomic.LoadInt64(&stats.rejected))

	if halted := manager.Halted(); len(halted) > 0 {
		fmt.Printf("⛔ Потоки, остановленные с ошибкой: %d\n", len(halted))
		for key, herr := range halted {
			fmt.Printf("   %s: %v\n", key, herr)
		}
	}

	if redisService != nil {
		redisService.Stop()
	}
	db.Close()

	fmt.Println("✅ Анализатор остановлен корректно")
}

// buildSource собирает источник баров потока по конфигурации. Потоковые
// источники получают курсор из watermark, чтобы после рестарта не
// перечитывать уже обработанные бары.
func buildSource(cfg *config.Config, db *sqlx.DB, wms stream.WatermarkStore, key stream.StreamKey) (stream.BarSource, error) {
	switch cfg.FeedKind {
	case config.FeedDatabase:
		wm, err := loadCursor(wms, key)
		if err != nil {
			return nil, err
		}
		repo := bars_repo.NewBarsRepository(db)
		return feed.NewDatabasePoller(repo, key.ContractID, key.Timeframe, wm.BarIndex, feed.PollOptions{
			BatchSize: cfg.FeedBatchSize,
			Interval:  cfg.FeedInterval,
			Follow:    cfg.FeedFollow,
		}), nil

	case config.FeedCSV:
		return feed.NewCSVFeed(cfg.PathForStream(key.ContractID, key.Timeframe), key.ContractID, key.Timeframe)

	case config.FeedParquet:
		return feed.NewParquetFeed(cfg.PathForStream(key.ContractID, key.Timeframe), key.ContractID, key.Timeframe)

	case config.FeedREST:
		wm, err := loadCursor(wms, key)
		if err != nil {
			return nil, err
		}
		return feed.NewRESTFeed(cfg.FeedURL, key.ContractID, key.Timeframe,
			startIndex(wm), wm.BarTimestamp, feed.RESTOptions{Interval: cfg.FeedInterval}), nil

	case config.FeedWebSocket:
		wm, err := loadCursor(wms, key)
		if err != nil {
			return nil, err
		}
		return feed.NewWSFeed(cfg.FeedURL, key.ContractID, key.Timeframe,
			startIndex(wm), wm.BarTimestamp), nil
	}
	return nil, fmt.Errorf("buildSource: unknown feed kind %q", cfg.FeedKind)
}

// loadCursor возвращает watermark ключа, для нового ключа - свежий
func loadCursor(wms stream.WatermarkStore, key stream.StreamKey) (stream.Watermark, error) {
	wm, err := wms.Load(key)
	if err != nil {
		return stream.Watermark{}, fmt.Errorf("load watermark: %w", err)
	}
	if wm == nil {
		return stream.FreshWatermark(key), nil
	}
	return *wm, nil
}

// startIndex возвращает стартовый счетчик индексов для потоковых
// источников: свежий ключ нумерует бары с единицы, как файловые фиды
func startIndex(wm stream.Watermark) int64 {
	if wm.BarIndex < 0 {
		return 0
	}
	return wm.BarIndex
}

// statsCollector копит счетчики для консольной сводки. Обычный подписчик
// шины, наравне с остальными потребителями.
type statsCollector struct {
	signals  int64
	rejected int64
	halted   int64
	finished int64
}

func (c *statsCollector) HandleEvent(event events.Event) error {
	switch event.Type {
	case events.EventSignalConfirmed:
		atomic.AddInt64(&c.signals, 1)
	case events.EventBarRejected:
		atomic.AddInt64(&c.rejected, 1)
	case events.EventWorkerHalted:
		atomic.AddInt64(&c.halted, 1)
	case events.EventStreamFinished:
		atomic.AddInt64(&c.finished, 1)
	}
	return nil
}

func (c *statsCollector) GetName() string {
	return "console_stats"
}

func (c *statsCollector) GetSubscribedEvents() []events.EventType {
	return []events.EventType{
		events.EventSignalConfirmed,
		events.EventBarRejected,
		events.EventWorkerHalted,
		events.EventStreamFinished,
	}
}

func printStats(startTime time.Time, stats *statsCollector, busMetrics *events.BusMetrics, totalStreams, iteration int) {
	fmt.Println(strings.Repeat("─", 80))
	fmt.Printf("📊 СТАТУС АНАЛИЗАТОРА (итерация #%d)\n", iteration)
	fmt.Printf("   ⏱️  Время работы: %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("   📈 Подтверждено сигналов: %d\n", atomic.LoadInt64(&stats.signals))
	fmt.Printf("   🚫 Отклонено баров: %d\n", atomic.LoadInt64(&stats.rejected))
	fmt.Printf("   🧵 Потоков: %d (завершено %d, с ошибкой %d)\n",
		totalStreams, atomic.LoadInt64(&stats.finished), atomic.LoadInt64(&stats.halted))

	busMetrics.Mu.RLock()
	fmt.Printf("   📨 Событий обработано: %d (отброшено %d)\n",
		busMetrics.EventsProcessed, busMetrics.EventsDropped)
	busMetrics.Mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("   💾 Память: %.2f MB\n", float64(m.Alloc)/1024/1024)
	fmt.Printf("   🕐 Текущее время: %s\n", time.Now().Format("15:04:05"))
	fmt.Println(strings.Repeat("─", 80))
	fmt.Println()
}

func formatStreams(streams []config.StreamSpec) string {
	parts := make([]string, 0, len(streams))
	for _, s := range streams {
		parts = append(parts, s.ContractID+":"+s.Timeframe)
	}
	return strings.Join(parts, ", ")
}

func printHeader(text string) {
	width := 80
	padding := (width - len(text)) / 2

	if padding < 0 {
		padding = 0
	}

	fmt.Println(strings.Repeat("═", width))
	fmt.Printf("%s%s%s\n",
		strings.Repeat(" ", padding),
		text,
		strings.Repeat(" ", width-len(text)-padding))
	fmt.Println(strings.Repeat("═", width))
}

func printSeparator() {
	fmt.Println(strings.Repeat("─", 80))
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}
