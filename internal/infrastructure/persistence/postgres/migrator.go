// internal/infrastructure/persistence/postgres/migrator.go
package postgres

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/burningportra/projectx-sub002/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// Migrator управляет миграциями базы данных
type Migrator struct {
	db         *sqlx.DB
	migrations map[int]*Migration
}

// Migration представляет одну миграцию
type Migration struct {
	ID          int
	Name        string
	Description string
	UpSQL       string
	Checksum    string
	AppliedAt   time.Time
}

// NewMigrator создает новый мигратор
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: make(map[int]*Migration),
	}
}

// Init инициализирует таблицу миграций
func (m *Migrator) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		checksum VARCHAR(64) NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`

	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	return nil
}

// LoadMigrations загружает миграции из директории
func (m *Migrator) LoadMigrations(migrationsDir string) error {
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", migrationsDir)
	}

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	// Имена начинаются с номера, сортировка по имени дает порядок применения
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		if err := m.loadMigration(migrationsDir, filename); err != nil {
			return fmt.Errorf("failed to load migration %s: %w", filename, err)
		}
	}

	logger.Info("✅ Loaded %d migrations", len(m.migrations))
	return nil
}

// loadMigration загружает одну миграцию из файла
// Формат имени: 001_init_schema.sql
func (m *Migrator) loadMigration(dir, filename string) error {
	id, name, err := parseMigrationFilename(filename)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	// При применении выполняется только UP-секция, DOWN остается
	// в файле как документация обратной операции
	migration := &Migration{
		ID:          id,
		Name:        name,
		Description: extractDescription(string(content)),
		UpSQL:       extractUpSQL(string(content)),
		Checksum:    calculateChecksum(string(content)),
	}

	m.migrations[id] = migration
	logger.Debug("📄 Loaded migration: %s (%s)", filename, migration.Description)
	return nil
}

// Migrate применяет все непройденные миграции
func (m *Migrator) Migrate() error {
	logger.Info("🚀 Starting database migrations...")

	if err := m.Init(); err != nil {
		return fmt.Errorf("failed to init migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Применяем миграции по порядку, пропуски ID недопустимы
	var appliedCount int
	for id := 1; id <= len(m.migrations); id++ {
		migration, exists := m.migrations[id]
		if !exists {
			return fmt.Errorf("missing migration with ID %d", id)
		}

		if record, ok := applied[id]; ok {
			// Примененная миграция не должна меняться задним числом
			if record.Checksum != migration.Checksum {
				return fmt.Errorf("checksum mismatch for migration %d: %s", id, migration.Name)
			}
			logger.Debug("✅ Migration already applied: %s", migration.Name)
			continue
		}

		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %s: %w", id, migration.Name, err)
		}

		appliedCount++
	}

	if appliedCount > 0 {
		logger.Info("✅ Applied %d new migrations", appliedCount)
	} else {
		logger.Info("✅ Database is up to date")
	}

	return nil
}

// Вспомогательные методы

func (m *Migrator) getAppliedMigrations() (map[int]*MigrationRecord, error) {
	query := `
	SELECT id, name, checksum, applied_at
	FROM migrations
	ORDER BY id
	`

	var records []MigrationRecord
	if err := m.db.Select(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	applied := make(map[int]*MigrationRecord, len(records))
	for i := range records {
		applied[records[i].ID] = &records[i]
	}

	return applied, nil
}

func (m *Migrator) applyMigration(migration *Migration) error {
	logger.Info("📤 Applying migration: %s", migration.Name)

	tx, err := m.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.UpSQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	query := `
	INSERT INTO migrations (id, name, description, checksum)
	VALUES ($1, $2, $3, $4)
	`
	_, err = tx.Exec(query,
		migration.ID,
		migration.Name,
		migration.Description,
		migration.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to save migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	logger.Info("✅ Applied migration: %s", migration.Name)
	return nil
}

// MigrationRecord - строка таблицы migrations
type MigrationRecord struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Checksum  string    `db:"checksum"`
	AppliedAt time.Time `db:"applied_at"`
}

// Вспомогательные функции

func parseMigrationFilename(filename string) (int, string, error) {
	base := strings.TrimSuffix(filename, ".sql")

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid migration filename format: %s (expected: 001_name.sql)", filename)
	}

	var id int
	if _, err := fmt.Sscanf(parts[0], "%d", &id); err != nil {
		return 0, "", fmt.Errorf("invalid migration ID in filename: %s", filename)
	}

	name := strings.ReplaceAll(parts[1], "_", " ")

	return id, name, nil
}

func extractDescription(sql string) string {
	lines := strings.Split(sql, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-- Description:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "-- Description:"))
		}
	}
	return "No description"
}

// extractUpSQL возвращает содержимое файла до маркера DOWN-секции
func extractUpSQL(sql string) string {
	if idx := strings.Index(sql, "-- DOWN Migration"); idx >= 0 {
		return sql[:idx]
	}
	return sql
}

func calculateChecksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
