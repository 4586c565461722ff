package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"celeb-barber/internal/adminbot"
	"celeb-barber/internal/api"
	"celeb-barber/internal/approval"
	"celeb-barber/internal/booking"
	"celeb-barber/internal/cache"
	"celeb-barber/internal/config"
	"celeb-barber/internal/identity"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/migrations"
	"celeb-barber/internal/reconciler"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/scheduler"
	"celeb-barber/internal/settings"
	"celeb-barber/internal/store"
	"celeb-barber/internal/user"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func main() {
	// Инициализация логгера
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, err := initLogger(logLevel)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("запуск приложения Celeb Barber")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("ошибка загрузки конфигурации", zap.Error(err))
	}
	logLevel.SetLevel(cfg.App.GetLogLevel().Level())

	// Инициализация базы данных
	db, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации базы данных", zap.Error(err))
	}
	defer db.Close()

	// Применение миграций
	if err := migrations.RunMigrations(cfg, logger); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}

	metricsSystem := metrics.New(logger, nil)

	// Кэш настроек необязателен
	var settingsCache settings.Cache
	if cfg.Redis.Enabled() {
		redisCache := cache.New(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "celeb:",
		}, logger)
		defer redisCache.Close()

		if err := redisCache.Ping(context.Background()); err != nil {
			logger.Warn("Redis недоступен, работаем без кэша", zap.Error(err))
		} else {
			settingsCache = redisCache
			logger.Info("кэш Redis подключен", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Инициализация сервисов
	identityService := identity.NewService(db.Identity(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminEmail, logger)
	referralService := referral.NewService(db.User(), db.Booking(), cfg.Business.ReferralCodePrefix, metricsSystem, logger)
	ledgerService := ledger.NewService(db.Ledger(), db.Booking(), metricsSystem, logger)
	reconcilerService := reconciler.NewService(db.User(), db.Booking(), ledgerService, referralService, cfg.Business.VIPPeriodDays, metricsSystem, logger)
	bookingService := booking.NewService(db.Booking(), db.Approval(), db.User(), reconcilerService, metricsSystem, logger)
	settingsService := settings.NewService(db.Settings(), settingsCache, cfg.Redis.TTL, cfg.Business.DefaultVIPPrice, logger)
	approvalService := approval.NewService(db.Approval(), db.User(), ledgerService, bookingService, reconcilerService, settingsService, metricsSystem, logger)
	userService := user.NewService(db.User(), identityService, referralService, reconcilerService, logger)

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.Deps{
		Tokens:     identityService,
		Users:      userService,
		Bookings:   bookingService,
		Approvals:  approvalService,
		Ledger:     ledgerService,
		Reconciler: reconcilerService,
		Referrals:  referralService,
		Settings:   settingsService,
		Metrics:    metrics.NewHandler(metricsSystem, db, logger),
	}, logger)

	// Создание канала для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Бот персонала необязателен
	if cfg.Telegram.BotToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal("ошибка инициализации Telegram бота", zap.Error(err))
		}
		logger.Info("Telegram бот инициализирован",
			zap.String("username", botAPI.Self.UserName),
			zap.Int("admin_chats", len(cfg.Telegram.AdminChatIDs)))

		staffBot := adminbot.NewHandler(botAPI, approvalService, reconcilerService, referralService, cfg.Telegram, logger)
		go staffBot.Run(ctx)
	} else {
		logger.Info("Telegram бот отключен")
	}

	// Планировщик фоновых задач
	if cfg.Scheduler.Enabled {
		taskScheduler := scheduler.NewScheduler(logger)
		taskScheduler.AddJob(scheduler.NewVIPExpiryJob(reconcilerService, logger))
		taskScheduler.AddJob(scheduler.NewStaleBookingJob(bookingService, logger))
		go taskScheduler.Start(ctx, cfg.Scheduler.Interval)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ошибка HTTP сервера", zap.Error(err))
		}
	}()

	logger.Info("приложение запущено и готово к работе",
		zap.String("address", fmt.Sprintf("http://localhost:%d", cfg.App.Port)),
	)

	// Обработка сигналов для graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("получен сигнал завершения, начинаем graceful shutdown")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки HTTP сервера", zap.Error(err))
	}

	logger.Info("приложение завершено")
}

// initLogger инициализирует логгер
func initLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.OutputPaths = []string{"stdout", "logs/app.log"}
	config.ErrorOutputPaths = []string{"stderr", "logs/error.log"}

	// Создаем директорию для логов если её нет
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории логов: %w", err)
	}

	return config.Build()
}
