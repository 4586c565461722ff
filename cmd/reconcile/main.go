package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"celeb-barber/internal/booking"
	"celeb-barber/internal/config"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/reconciler"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/store"

	"go.uber.org/zap"
)

func main() {
	var (
		userIDs = flag.String("user", "", "ID пользователей через запятую (пусто = все пользователи)")
		dryRun  = flag.Bool("dry-run", false, "Показать расхождения без сохранения")
		expire  = flag.Bool("expire", false, "Снять истекшие VIP-членства")
		heal    = flag.Bool("heal", false, "Вернуть в pending бронирования без заявки")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Подключение к базе данных
	db, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	refs := referral.NewService(db.User(), db.Booking(), cfg.Business.ReferralCodePrefix, nil, logger)
	led := ledger.NewService(db.Ledger(), db.Booking(), nil, logger)
	rec := reconciler.NewService(db.User(), db.Booking(), led, refs, cfg.Business.VIPPeriodDays, nil, logger)

	if *heal && !*dryRun {
		healed, err := booking.NewService(db.Booking(), db.Approval(), db.User(), rec, nil, logger).HealStale(ctx)
		if err != nil {
			logger.Fatal("Ошибка исправления бронирований", zap.Error(err))
		}
		logger.Info("Бронирования исправлены", zap.Int("healed", healed))
	}

	results, err := rec.Reconcile(ctx, splitIDs(*userIDs), *dryRun)
	if err != nil {
		logger.Fatal("Ошибка сверки трат", zap.Error(err))
	}

	changed := 0
	for _, r := range results {
		if !r.Changed {
			continue
		}
		changed++
		logger.Info("Расхождение в тратах",
			zap.String("user_id", r.UserID),
			zap.String("stored", r.Stored.String()),
			zap.String("computed", r.Computed.String()),
			zap.Bool("dry_run", *dryRun))
	}

	if *expire && !*dryRun {
		revoked, err := rec.ExpireMemberships(ctx)
		if err != nil {
			logger.Fatal("Ошибка снятия истекших VIP", zap.Error(err))
		}
		logger.Info("Истекшие VIP сняты", zap.Int("revoked", revoked))
	}

	logger.Info("Сверка завершена",
		zap.Int("processed_users", len(results)),
		zap.Int("changed", changed),
		zap.Bool("dry_run", *dryRun))
}

func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
