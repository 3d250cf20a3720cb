package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/app"
	"github.com/Freeeeeet/tutoring_scheduler/internal/auth"
	"github.com/Freeeeeet/tutoring_scheduler/internal/config"
	"github.com/Freeeeeet/tutoring_scheduler/internal/controller"
	"github.com/Freeeeeet/tutoring_scheduler/internal/controller/api"
	"github.com/Freeeeeet/tutoring_scheduler/internal/lock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/notify"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting tutoring scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("timezone", cfg.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}

	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Connected to database")

	if cfg.AutoMigrate {
		if err := migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Репозитории
	db := base.NewRepository(pool)
	slotRepo := repository.NewAvailabilityRepository(db)
	blockedRepo := repository.NewUnavailableDateRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.LinkTokenTTL)

	// Telegram необязателен: без токена уведомления только пишутся в лог
	var (
		botInstance *bot.Bot
		notifier    service.Notifier
		telegram    *notify.Telegram
	)
	if cfg.TelegramToken != "" {
		botInstance, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		telegram = notify.NewTelegram(botInstance, directoryRepo, loc, logger)
		notifier = telegram
	} else {
		logger.Warn("TELEGRAM_TOKEN is not set, notifications are disabled")
		notifier = notify.NewNop(logger)
	}

	// Сервисы
	bookingService := service.NewBookingService(db, locker, slotRepo, blockedRepo, sessionRepo, directoryRepo, notifier, loc, logger)
	availabilityService := service.NewAvailabilityService(db, slotRepo, blockedRepo, directoryRepo, logger)
	reminderService := service.NewReminderService(sessionRepo, directoryRepo, notifier, loc, logger)
	userService := service.NewUserService(directoryRepo, logger)
	scheduler := service.NewController(bookingService, availabilityService, directoryRepo, logger)

	if botInstance != nil {
		botController := controller.NewBotController(botInstance, userService, scheduler, tokens, loc, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			return fmt.Errorf("register bot handlers: %w", err)
		}
		go botController.Start(ctx)
	}

	cronScheduler, err := app.NewScheduler(reminderService, cfg.ReminderCron, loc, logger)
	if err != nil {
		return err
	}
	cronScheduler.Start()

	handler := api.NewHandler(scheduler, tokens, cfg.TelegramBotUsername, loc, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler, tokens, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	cronScheduler.Stop(shutdownCtx)
	if telegram != nil {
		telegram.Wait()
	}

	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Run(ctx)
}

// newLocker выбирает блокировки: Redis при нескольких экземплярах, иначе в памяти процесса
func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR is not set, using in-process locks")
		return lock.NewMemory(), func() {}, nil
	}

	rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to redis", zap.String("addr", cfg.RedisAddr))

	return lock.NewRedis(rdb, cfg.LockTTL, logger), func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}, nil
}
