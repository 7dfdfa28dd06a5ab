// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	detectorcfg "github.com/burningportra/projectx-sub002/internal/core/domain/trend/config"
	redis "github.com/burningportra/projectx-sub002/internal/infrastructure/cache/redis"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres"
	"github.com/burningportra/projectx-sub002/internal/stream"
	"github.com/burningportra/projectx-sub002/pkg/timeframe"
)

// Известные виды источников баров
const (
	FeedDatabase  = "database"
	FeedCSV       = "csv"
	FeedParquet   = "parquet"
	FeedREST      = "rest"
	FeedWebSocket = "websocket"
)

// StreamSpec - один поток анализа: контракт и таймфрейм
type StreamSpec struct {
	ContractID string
	Timeframe  string
}

// Config - структура конфигурации приложения
type Config struct {
	// Analyzer
	AnalyzerID string
	Streams    []StreamSpec

	// Feed
	FeedKind      string
	FeedPath      string // шаблон пути файловых источников, {contract} и {timeframe} подставляются
	FeedURL       string // эндпоинт rest и websocket источников
	FeedFollow    bool
	FeedInterval  time.Duration
	FeedBatchSize int

	// Pipeline
	DataErrorPolicy stream.DataErrorPolicy
	Retry           stream.RetryConfig

	// Detection
	Detector detectorcfg.DetectorConfig

	// Infrastructure
	Postgres     postgres.Config
	Redis        redis.Config
	RedisEnabled bool

	// Metrics
	MetricsEnabled bool
	MetricsAddr    string

	// Event bus
	EventBusBuffer  int
	EventBusWorkers int

	// Logging
	LogLevel      string
	LogFile       string
	Debug         bool
	StatsInterval time.Duration
}

// LoadConfig загружает конфигурацию из .env файла
func LoadConfig(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
	}

	streams, err := parseStreams(getEnvString("STREAMS", ""))
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: STREAMS: %w", err)
	}

	pg := postgres.DefaultConfig()
	pg.Host = getEnvString("DB_HOST", pg.Host)
	pg.Port = getEnvInt("DB_PORT", pg.Port)
	pg.User = getEnvString("DB_USER", pg.User)
	pg.Password = getEnvString("DB_PASSWORD", pg.Password)
	pg.Database = getEnvString("DB_NAME", pg.Database)
	pg.SSLMode = getEnvString("DB_SSLMODE", pg.SSLMode)
	pg.MaxConns = getEnvInt("DB_MAX_CONNS", pg.MaxConns)
	pg.MaxIdle = getEnvInt("DB_MAX_IDLE", pg.MaxIdle)
	pg.MigrationsPath = getEnvString("DB_MIGRATIONS_PATH", pg.MigrationsPath)

	rd := redis.DefaultConfig()
	rd.Host = getEnvString("REDIS_HOST", rd.Host)
	rd.Port = getEnvInt("REDIS_PORT", rd.Port)
	rd.Password = getEnvString("REDIS_PASSWORD", rd.Password)
	rd.DB = getEnvInt("REDIS_DB", rd.DB)
	rd.PoolSize = getEnvInt("REDIS_POOL_SIZE", rd.PoolSize)

	det := detectorcfg.NewConfig()
	det.Lookback = getEnvInt("DETECT_LOOKBACK", det.Lookback)
	det.ToleranceFrac = getEnvFloat("DETECT_TOLERANCE_FRAC", det.ToleranceFrac)
	det.MinInsideBars = getEnvInt("DETECT_MIN_INSIDE_BARS", det.MinInsideBars)
	det.MomentumMinFrac = getEnvFloat("DETECT_MOMENTUM_MIN_FRAC", det.MomentumMinFrac)
	if raw := getEnvString("DETECT_MOMENTUM_BY_TIMEFRAME", ""); raw != "" {
		overrides, err := parseMomentumOverrides(raw)
		if err != nil {
			return nil, fmt.Errorf("LoadConfig: DETECT_MOMENTUM_BY_TIMEFRAME: %w", err)
		}
		det.MomentumByTimeframe = overrides
	}

	retry := stream.DefaultRetry
	retry.BaseDelay = time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", int(retry.BaseDelay/time.Millisecond))) * time.Millisecond
	retry.MaxDelay = time.Duration(getEnvInt("RETRY_MAX_DELAY_MS", int(retry.MaxDelay/time.Millisecond))) * time.Millisecond
	retry.Multiplier = getEnvFloat("RETRY_MULTIPLIER", retry.Multiplier)
	retry.MaxAttempts = getEnvInt("RETRY_MAX_ATTEMPTS", retry.MaxAttempts)

	config := &Config{
		AnalyzerID: getEnvString("ANALYZER_ID", "trend_start"),
		Streams:    streams,

		FeedKind:      strings.ToLower(getEnvString("FEED_KIND", FeedDatabase)),
		FeedPath:      getEnvString("FEED_PATH", "data/{contract}_{timeframe}.csv"),
		FeedURL:       getEnvString("FEED_URL", ""),
		FeedFollow:    getEnvBool("FEED_FOLLOW", true),
		FeedInterval:  time.Duration(getEnvInt("FEED_POLL_INTERVAL", 5)) * time.Second,
		FeedBatchSize: getEnvInt("FEED_BATCH_SIZE", 500),

		DataErrorPolicy: stream.DataErrorPolicy(strings.ToLower(getEnvString("DATA_ERROR_POLICY", string(stream.PolicyHalt)))),
		Retry:           retry,

		Detector: det,

		Postgres:     *pg,
		Redis:        *rd,
		RedisEnabled: getEnvBool("REDIS_ENABLED", true),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsAddr:    getEnvString("METRICS_ADDR", ":9090"),

		EventBusBuffer:  getEnvInt("EVENT_BUS_BUFFER", 0),
		EventBusWorkers: getEnvInt("EVENT_BUS_WORKERS", 0),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFile:       getEnvString("LOG_FILE", "logs/analyzer.log"),
		Debug:         getEnvBool("DEBUG", false),
		StatsInterval: time.Duration(getEnvInt("STATS_INTERVAL", 60)) * time.Second,
	}

	return config, nil
}

// Вспомогательные функции для парсинга переменных окружения
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// parseStreams разбирает список потоков вида
// "CON.F.US.MES.M25:5m,CON.F.US.ENQ.M25:1h". Таймфреймы приводятся
// к каноническому виду.
func parseStreams(raw string) ([]StreamSpec, error) {
	parts := strings.Split(raw, ",")
	streams := make([]StreamSpec, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.Split(part, ":")
		if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
			return nil, fmt.Errorf("bad stream %q, want contract:timeframe", part)
		}
		tf, err := timeframe.Normalize(pieces[1])
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", part, err)
		}
		streams = append(streams, StreamSpec{ContractID: pieces[0], Timeframe: tf})
	}

	if len(streams) == 0 {
		return nil, fmt.Errorf("no streams configured, set STREAMS in .env")
	}
	return streams, nil
}

// parseMomentumOverrides разбирает переопределения momentum-порога
// вида "5m:0.002,1h:0.004"
func parseMomentumOverrides(raw string) (map[string]float64, error) {
	overrides := make(map[string]float64)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pieces := strings.Split(part, ":")
		if len(pieces) != 2 {
			return nil, fmt.Errorf("bad override %q, want timeframe:frac", part)
		}
		tf, err := timeframe.Normalize(pieces[0])
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", part, err)
		}
		frac, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", part, err)
		}
		overrides[tf] = frac
	}
	if len(overrides) == 0 {
		return nil, fmt.Errorf("no overrides in %q", raw)
	}
	return overrides, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.AnalyzerID == "" {
		return fmt.Errorf("analyzer id is required")
	}
	if len(c.Streams) == 0 {
		return fmt.Errorf("at least one stream is required")
	}
	seen := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		if s.ContractID == "" || !timeframe.IsValid(s.Timeframe) {
			return fmt.Errorf("bad stream %s:%s", s.ContractID, s.Timeframe)
		}
		key := s.ContractID + ":" + s.Timeframe
		if seen[key] {
			return fmt.Errorf("duplicate stream %s", key)
		}
		seen[key] = true
	}

	switch c.FeedKind {
	case FeedDatabase:
	case FeedCSV, FeedParquet:
		if c.FeedPath == "" {
			return fmt.Errorf("FEED_PATH is required for %s feed", c.FeedKind)
		}
	case FeedREST, FeedWebSocket:
		if c.FeedURL == "" {
			return fmt.Errorf("FEED_URL is required for %s feed", c.FeedKind)
		}
	default:
		return fmt.Errorf("unknown feed kind %q", c.FeedKind)
	}
	if c.FeedInterval <= 0 {
		return fmt.Errorf("feed poll interval must be positive")
	}
	if c.FeedBatchSize < 1 {
		return fmt.Errorf("feed batch size must be at least 1")
	}

	if err := c.DataErrorPolicy.Validate(); err != nil {
		return err
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry max delay must not be below base delay")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max attempts must not be negative")
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector config: %w", err)
	}

	if c.MetricsEnabled && c.MetricsAddr == "" {
		return fmt.Errorf("METRICS_ADDR is required when metrics are enabled")
	}
	return nil
}

// PathForStream подставляет контракт и таймфрейм в шаблон пути
// файлового источника
func (c *Config) PathForStream(contractID, timeframe string) string {
	path := strings.ReplaceAll(c.FeedPath, "{contract}", contractID)
	return strings.ReplaceAll(path, "{timeframe}", timeframe)
}
