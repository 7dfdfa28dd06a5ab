// cmd/reset/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/burningportra/projectx-sub002/internal/config"
	"github.com/burningportra/projectx-sub002/internal/infrastructure/persistence/postgres"
	"github.com/burningportra/projectx-sub002/pkg/timeframe"
)

// Сброс прогресса анализатора: удаляет сигналы и watermark, после чего
// следующий запуск обрабатывает поток с нуля. Детерминированный детектор
// на тех же барах выпустит те же сигналы.
func main() {
	// Парсинг флагов
	var (
		configPath = flag.String("config", ".env", "Путь к файлу конфигурации")
		analyzerID = flag.String("analyzer", "", "Идентификатор анализатора (по умолчанию из .env)")
		contractID = flag.String("contract", "", "Контракт сбрасываемого потока")
		tf         = flag.String("timeframe", "", "Таймфрейм сбрасываемого потока")
		all        = flag.Bool("all", false, "Сбросить все потоки анализатора")
		yes        = flag.Bool("yes", false, "Не спрашивать подтверждение")
	)
	flag.Parse()

	fmt.Println("🧹 СБРОС ПРОГРЕССА АНАЛИЗАТОРА")
	fmt.Println(strings.Repeat("=", 60))

	if *all == (*contractID != "" || *tf != "") {
		fmt.Println("❌ Укажите либо -all, либо пару -contract и -timeframe")
		fmt.Println("💡 Используйте: reset -contract=CON.F.US.MES.M25 -timeframe=5m")
		fmt.Println("💡 Или:         reset -all")
		os.Exit(1)
	}
	if !*all && (*contractID == "" || *tf == "") {
		fmt.Println("❌ Для сброса одного потока нужны оба флага: -contract и -timeframe")
		os.Exit(1)
	}

	canonTF := ""
	if *tf != "" {
		var err error
		canonTF, err = timeframe.Normalize(*tf)
		if err != nil {
			fmt.Printf("❌ Некорректный таймфрейм %q: %v\n", *tf, err)
			os.Exit(1)
		}
	}

	// Загрузка конфигурации
	fmt.Println("1. 📋 Загрузка конфигурации...")
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}
	if *analyzerID == "" {
		*analyzerID = cfg.AnalyzerID
	}

	// Что именно удаляем
	if *all {
		fmt.Printf("⚠️  Будут удалены сигналы и watermark ВСЕХ потоков анализатора %q\n", *analyzerID)
	} else {
		fmt.Printf("⚠️  Будут удалены сигналы и watermark потока %s/%s/%s\n",
			*analyzerID, *contractID, canonTF)
	}
	fmt.Println("   Бары в таблице bars не трогаем")

	if !*yes && !confirm() {
		fmt.Println("🚫 Отменено")
		os.Exit(0)
	}

	// Подключение к базе
	fmt.Println("2. 🐘 Подключение к PostgreSQL...")
	db, err := postgres.Connect(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Не удалось подключиться к PostgreSQL: %v", err)
	}
	defer db.Close()

	// Сброс
	fmt.Println("3. 🧹 Сброс...")
	var deleted int64
	if *all {
		deleted, err = postgres.ResetAnalyzer(db, *analyzerID)
	} else {
		deleted, err = postgres.ResetStream(db, *analyzerID, *contractID, canonTF)
	}
	if err != nil {
		log.Fatalf("Сброс не удался: %v", err)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("🎉 ГОТОВО: удалено сигналов: %d\n", deleted)
	fmt.Println("   Следующий запуск анализатора обработает поток с нуля")
	fmt.Println(strings.Repeat("=", 60))
}

// confirm спрашивает подтверждение в консоли
func confirm() bool {
	fmt.Print("\n   Введите yes для подтверждения: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(line)) == "yes"
}
