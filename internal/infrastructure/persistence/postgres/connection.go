// internal/infrastructure/persistence/postgres/connection.go
package postgres

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Config struct {
	Host           string `mapstructure:"DB_HOST"`
	Port           int    `mapstructure:"DB_PORT"`
	User           string `mapstructure:"DB_USER"`
	Password       string `mapstructure:"DB_PASSWORD"`
	Database       string `mapstructure:"DB_NAME"`
	SSLMode        string `mapstructure:"DB_SSLMODE"`
	MaxConns       int    `mapstructure:"DB_MAX_CONNS"`
	MaxIdle        int    `mapstructure:"DB_MAX_IDLE"`
	MigrationsPath string `mapstructure:"DB_MIGRATIONS_PATH"`
}

func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		User:           "trendstart",
		Password:       "password",
		Database:       "trendstart_db",
		SSLMode:        "disable",
		MaxConns:       25,
		MaxIdle:        10,
		MigrationsPath: "internal/infrastructure/persistence/postgres/migrations",
	}
}

func Connect(cfg *Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Проверка подключения
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("✅ Connected to PostgreSQL")

	// Дедупликация сигналов держится на уникальном индексе,
	// поэтому без актуальной схемы запускаться нельзя.
	if cfg.MigrationsPath != "" {
		if err := RunMigrations(db, cfg.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

func RunMigrations(db *sqlx.DB, migrationsPath string) error {
	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	logger.Info("📂 Running migrations from: %s", absPath)

	migrator := NewMigrator(db)

	if err := migrator.LoadMigrations(absPath); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := migrator.Migrate(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("✅ Database migrations completed successfully")
	return nil
}
