package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/config"
	"github.com/Freeeeeet/clinic_scheduler/internal/controller"
	"github.com/Freeeeeet/clinic_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/clinic_scheduler/internal/controller/rest"
	"github.com/Freeeeeet/clinic_scheduler/internal/notification"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App собранные зависимости приложения
type App struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	logger *zap.Logger

	Templates    *service.TemplateService
	Generator    *service.SlotGenerator
	Schedules    *service.ScheduleService
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Directory    *service.DirectoryService

	bot *bot.Bot
}

// NewPool создаёт пул соединений и проверяет доступность базы
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// New собирает репозитории и сервисы поверх пула
func New(cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	clock := service.NewRegionalClock(cfg.Timezone)

	templates := repository.NewTemplateRepository(pool)
	ruleState := repository.NewRuleStateRepository(pool)
	slots := repository.NewSlotRepository(pool)
	appointments := repository.NewAppointmentRepository(pool)
	schedules := repository.NewScheduleRepository(pool)

	directory, err := service.NewDirectoryService(repository.NewDirectoryRepository(pool), cfg.DirectoryCacheSize, logger)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, pool: pool, logger: logger, Directory: directory}

	notifiers := notification.Fanout{notification.NewLogNotifier(logger)}
	if cfg.TelegramEnabled() {
		a.bot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("create telegram bot: %w", err)
		}
		if cfg.TelegramNotifyChatID != 0 {
			notifiers = append(notifiers, notification.NewTelegramNotifier(a.bot, cfg.TelegramNotifyChatID, directory))
		}
	}

	a.Templates = service.NewTemplateService(templates, ruleState, slots, clock, logger)
	a.Generator = service.NewSlotGenerator(templates, ruleState, slots, clock, service.GeneratorConfig{
		Parallelism:   cfg.GenerateParallelism,
		RetryAttempts: cfg.StoreRetryAttempts,
	}, logger)
	a.Schedules = service.NewScheduleService(schedules, clock, logger)
	a.Availability = service.NewAvailabilityService(schedules, appointments, clock, cfg.BookingLeadTime, logger)
	a.Bookings = service.NewBookingService(appointments, notifiers, clock, nil, logger)

	return a, nil
}

// Serve запускает HTTP API и, если задан токен, бота. Работает до отмены ctx.
func (a *App) Serve(ctx context.Context) error {
	h := rest.NewHandler(rest.Services{
		Templates:    a.Templates,
		Generator:    a.Generator,
		Schedules:    a.Schedules,
		Availability: a.Availability,
		Bookings:     a.Bookings,
		Directory:    a.Directory,
		Health:       a.pool.Ping,
	}, a.cfg.Timezone, a.logger)
	e := rest.NewServer(h, a.logger)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := e.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		return shutdown(e, a.logger)
	})

	if a.bot != nil {
		if len(a.cfg.TelegramAdminIDs) == 0 {
			a.logger.Warn("TELEGRAM_ADMIN_IDS is empty, admin commands are disabled")
		}
		cmdHandlers := handlers.NewHandlers(a.Generator, a.Availability, a.Bookings,
			service.NewRegionalClock(a.cfg.Timezone), a.cfg.TelegramAdminIDs, a.logger)
		botController := controller.NewBotController(a.bot, cmdHandlers, a.logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Bot commands menu not set", zap.Error(err))
		}
		eg.Go(func() error {
			botController.Start(egCtx)
			return nil
		})
	}

	return eg.Wait()
}

func shutdown(e *echo.Echo, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server")
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
