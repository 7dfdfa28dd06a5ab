// cmd/backfill/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/burningportra/projectx-sub002/internal/adapters/feed"
	"github.com/burningportra/projectx-sub002/internal/config"
	coreerrors "github.com/burningportra/projectx-sub002/internal/core/errors"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/models"
	bars_repo "github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres/repository/bars"
	"github.com/burningportra/projectx-sub002/internal/stream"
	"github.com/burningportra/projectx-sub002/pkg/timeframe"
)

// Загрузчик исторических баров из файла в таблицу bars. Дубликаты по
// (contract_id, timeframe, ts) база пропускает, поэтому повторный прогон
// того же файла безопасен.
func main() {
	// Парсинг флагов
	var (
		configPath = flag.String("config", ".env", "Путь к файлу конфигурации")
		filePath   = flag.String("file", "", "Файл с барами (CSV или Parquet)")
		contractID = flag.String("contract", "", "Идентификатор контракта, например CON.F.US.MES.M25")
		tf         = flag.String("timeframe", "", "Таймфрейм потока, например 5m или 1h")
		format     = flag.String("format", "auto", "Формат файла: csv, parquet или auto (по расширению)")
		batchSize  = flag.Int("batch", 500, "Размер пачки вставки")
	)
	flag.Parse()

	fmt.Println("📥 ЗАГРУЗКА ИСТОРИЧЕСКИХ БАРОВ")
	fmt.Println(strings.Repeat("=", 60))

	if *filePath == "" || *contractID == "" || *tf == "" {
		fmt.Println("❌ Не указаны обязательные флаги")
		fmt.Println("💡 Используйте: backfill -file=data/mes_5m.csv -contract=CON.F.US.MES.M25 -timeframe=5m")
		os.Exit(1)
	}

	canonTF, err := timeframe.Normalize(*tf)
	if err != nil {
		fmt.Printf("❌ Некорректный таймфрейм %q: %v\n", *tf, err)
		os.Exit(1)
	}

	kind := *format
	if kind == "auto" {
		switch strings.ToLower(filepath.Ext(*filePath)) {
		case ".csv":
			kind = "csv"
		case ".parquet", ".pq":
			kind = "parquet"
		default:
			fmt.Printf("❌ Не удалось определить формат по расширению %q\n", filepath.Ext(*filePath))
			fmt.Println("💡 Укажите формат явно: -format=csv или -format=parquet")
			os.Exit(1)
		}
	}

	// Загрузка конфигурации
	fmt.Println("1. 📋 Загрузка конфигурации...")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации: %v\n", err)
		fmt.Println("💡 Загрузчику нужны только настройки БД, проверьте DB_* в .env")
		os.Exit(1)
	}

	// Подключение к базе
	fmt.Println("2. 🐘 Подключение к PostgreSQL...")
	db, err := postgres.Connect(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Не удалось подключиться к PostgreSQL: %v", err)
	}
	defer db.Close()
	repo := bars_repo.NewBarsRepository(db)

	// Чтение файла
	fmt.Printf("3. 📖 Чтение %s (%s, поток %s/%s)...\n", *filePath, kind, *contractID, canonTF)
	var src stream.BarSource
	switch kind {
	case "csv":
		src, err = feed.NewCSVFeed(*filePath, *contractID, canonTF)
	case "parquet":
		src, err = feed.NewParquetFeed(*filePath, *contractID, canonTF)
	default:
		fmt.Printf("❌ Неизвестный формат %q\n", kind)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("Не удалось открыть файл: %v", err)
	}
	defer src.Close()

	startTime := time.Now()
	stop := make(chan struct{})

	var (
		batch    []models.Bar
		total    int64
		invalid  int64
		inserted int64
	)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := repo.InsertBatch(batch)
		if err != nil {
			log.Fatalf("Не удалось вставить пачку: %v", err)
		}
		inserted += n
		batch = batch[:0]
	}

	for {
		b, err := src.Next(stop)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var derr *coreerrors.DataError
			if errors.As(err, &derr) {
				invalid++
				fmt.Printf("   ⚠️  Строка %d пропущена: %s\n", derr.BarIndex, derr.Reason)
				continue
			}
			log.Fatalf("Ошибка чтения файла: %v", err)
		}
		// Сломанные бары не кладем в базу, анализатор их все равно отклонит
		if verr := b.Validate(); verr != nil {
			invalid++
			fmt.Printf("   ⚠️  Бар %d пропущен: %v\n", b.Index, verr)
			continue
		}

		total++
		batch = append(batch, models.NewBar(b.ContractID, b.Timeframe, b.Timestamp,
			b.Open, b.High, b.Low, b.Close, b.Volume))
		if len(batch) >= *batchSize {
			flush()
		}
	}
	flush()

	duplicates := total - inserted

	// Итоги
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("🎉 ЗАГРУЗКА ЗАВЕРШЕНА")
	fmt.Printf("   ⏱️  Время: %s\n", time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("   📊 Прочитано баров: %d\n", total)
	fmt.Printf("   ✅ Вставлено: %d\n", inserted)
	if duplicates > 0 {
		fmt.Printf("   ♻️  Дубликатов пропущено: %d\n", duplicates)
	}
	if invalid > 0 {
		fmt.Printf("   ⚠️  Битых строк: %d\n", invalid)
	}

	count, err := repo.Count(*contractID, canonTF)
	if err == nil {
		fmt.Printf("   📦 Всего баров в потоке: %d\n", count)
	}
	fmt.Println(strings.Repeat("=", 60))
}
