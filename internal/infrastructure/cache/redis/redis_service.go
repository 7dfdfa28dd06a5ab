// internal/infrastructure/cache/redis/redis_service.go
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/go-redis/redis/v8"
)

// Config настройки подключения к Redis
type Config struct {
	Host         string        `mapstructure:"REDIS_HOST"`
	Port         int           `mapstructure:"REDIS_PORT"`
	Password     string        `mapstructure:"REDIS_PASSWORD"`
	DB           int           `mapstructure:"REDIS_DB"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig возвращает настройки Redis по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisService сервис для работы с Redis
type RedisService struct {
	config *Config
	client *redis.Client
	state  ServiceState
}

// ServiceState состояние сервиса
type ServiceState string

const (
	StateStopped  ServiceState = "stopped"
	StateStarting ServiceState = "starting"
	StateRunning  ServiceState = "running"
	StateStopping ServiceState = "stopping"
	StateError    ServiceState = "error"
)

// NewRedisService создает новый Redis сервис
func NewRedisService(cfg *Config) *RedisService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &RedisService{
		config: cfg,
		state:  StateStopped,
	}
}

// Start запускает Redis сервис
func (rs *RedisService) Start() error {
	if rs.state == StateRunning {
		return fmt.Errorf("Redis service already running")
	}

	logger.Info("🔄 Starting Redis service...")
	rs.state = StateStarting

	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rs.config.Host, rs.config.Port),
		Password: rs.config.Password,
		DB:       rs.config.DB,

		// Настройки пула соединений
		PoolSize:     rs.config.PoolSize,
		MinIdleConns: rs.config.MinIdleConns,

		// Таймауты
		DialTimeout:  rs.config.DialTimeout,
		ReadTimeout:  rs.config.ReadTimeout,
		WriteTimeout: rs.config.WriteTimeout,
	}

	rs.client = redis.NewClient(options)

	// Проверяем подключение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("📡 Connecting to Redis: %s:%d (DB: %d)",
		rs.config.Host, rs.config.Port, rs.config.DB)

	if _, err := rs.client.Ping(ctx).Result(); err != nil {
		rs.client.Close()
		rs.state = StateError
		logger.Error("❌ Failed to connect to Redis: %v (address: %s)", err, options.Addr)
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	rs.state = StateRunning
	logger.Info("✅ Successfully connected to Redis")

	return nil
}

// Stop останавливает Redis сервис
func (rs *RedisService) Stop() error {
	if rs.state != StateRunning {
		return fmt.Errorf("Redis service is not running")
	}

	logger.Info("🛑 Stopping Redis service...")
	rs.state = StateStopping

	if rs.client != nil {
		if err := rs.client.Close(); err != nil {
			rs.state = StateError
			logger.Error("❌ Failed to close Redis client: %v", err)
			return fmt.Errorf("failed to close Redis client: %w", err)
		}
	}

	rs.client = nil
	rs.state = StateStopped
	logger.Info("✅ Redis service stopped")

	return nil
}

// GetClient возвращает клиент Redis
func (rs *RedisService) GetClient() *redis.Client {
	return rs.client
}

// State возвращает состояние сервиса
func (rs *RedisService) State() ServiceState {
	return rs.state
}

// IsRunning возвращает true если сервис запущен
func (rs *RedisService) IsRunning() bool {
	return rs.State() == StateRunning
}

// HealthCheck проверяет здоровье Redis
func (rs *RedisService) HealthCheck() bool {
	if rs.state != StateRunning || rs.client == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := rs.client.Ping(ctx).Result(); err != nil {
		logger.Warn("⚠️ Redis health check failed: %v", err)
		return false
	}

	return true
}

// Name возвращает имя сервиса
func (rs *RedisService) Name() string {
	return "RedisService"
}
