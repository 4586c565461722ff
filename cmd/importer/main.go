package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"celeb-barber/internal/config"
	"celeb-barber/internal/importer"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/migrations"
	"celeb-barber/internal/reconciler"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/store"
	"celeb-barber/internal/store/memstore"

	"go.uber.org/zap"
)

func main() {
	var (
		file      = flag.String("file", "export.json", "Файл выгрузки старого хранилища")
		dryRun    = flag.Bool("dry-run", false, "Проверить выгрузку на хранилище в памяти")
		reconcile = flag.Bool("reconcile", true, "Пересчитать траты после импорта")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("Ошибка открытия выгрузки", zap.Error(err))
	}
	defer f.Close()

	export, err := importer.Decode(f)
	if err != nil {
		logger.Fatal("Ошибка чтения выгрузки", zap.Error(err))
	}

	var db store.Store
	if *dryRun {
		db = memstore.New()
		logger.Info("DRY RUN: импорт в хранилище в памяти")
	} else {
		if err := migrations.RunMigrations(cfg, logger); err != nil {
			logger.Fatal("Ошибка применения миграций", zap.Error(err))
		}
		db, err = store.NewStore(cfg, logger)
		if err != nil {
			logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
		}
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := importer.New(db, cfg.Business.ReferralCodePrefix, logger).Run(ctx, export)
	if err != nil {
		logger.Fatal("Импорт прерван", zap.Error(err), zap.Any("report", report))
	}

	if *reconcile {
		refs := referral.NewService(db.User(), db.Booking(), cfg.Business.ReferralCodePrefix, nil, logger)
		led := ledger.NewService(db.Ledger(), db.Booking(), nil, logger)
		rec := reconciler.NewService(db.User(), db.Booking(), led, refs, cfg.Business.VIPPeriodDays, nil, logger)

		results, err := rec.Reconcile(ctx, nil, false)
		if err != nil {
			logger.Fatal("Ошибка пересчета трат", zap.Error(err))
		}
		logger.Info("Траты пересчитаны", zap.Int("users", len(results)))
	}

	logger.Info("Импорт завершен", zap.Any("report", report))
}
