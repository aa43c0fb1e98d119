// Основной пакет сервиса ATS. Отвечает за чтение конфигурации, подключение к базе данных, миграцию таблиц и запуск HTTP сервера.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cicsa-sst/ats/internal/ats"
	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/gormlogger"
)

var version string = "DEV"

// Пример запуска: go run ./cmd/ats --trace
func main() {
	paramQueries := flag.Bool("paramQueries", true, "Mask queries params in log")
	noMigration := flag.Bool("noMigration", false, "Turn off DB migration")
	trace := flag.Bool("trace", false, "Verbose logs and sql trace")
	flag.Parse()

	PrintBanner()

	if *trace {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	// Set prod log format
	if version != "DEV" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})))
	}

	cfg, err := config.ReadConfig()
	if err != nil {
		slog.Error("Read config", "err", err)
		os.Exit(1)
	}

	slog.Info("ATS start.")

	db, err := dao.OpenDB(cfg.DatabaseDSN, gormlogger.NewGormLogger(slog.Default(), time.Second*4, *paramQueries))
	if err != nil {
		slog.Error("Fail init DB connection", "err", err)
		os.Exit(1)
	}

	if !*noMigration {
		slog.Info("Migrate models")
		if err := db.AutoMigrate(dao.AllModels()...); err != nil {
			slog.Error("Fail migrate models", "err", err)
			os.Exit(1)
		}
	}

	if err := ats.Server(db, cfg, version); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

// PrintBanner выводит заголовок сервиса с версией.
func PrintBanner() {
	banner := `
    _  _____ ____
   / \|_   _/ ___|
  / _ \ | | \___ \
 / ___ \| |  ___) |
/_/   \_\_| |____/ %s
Analisis de Trabajo Seguro - CICSA
----------------------------------------------------
`
	colorReset := "\033[0m"
	colorYellow := "\033[33m"

	formattedVersion := version
	if version == "DEV" {
		formattedVersion = colorYellow + version + colorReset
	}

	fmt.Printf(banner, formattedVersion)
}
