// Package rest административный и регистрационный HTTP API на echo
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type TemplateAdmin interface {
	CreateTemplate(ctx context.Context, in service.TemplateInput) (*model.Template, error)
	UpdateTemplate(ctx context.Context, id uuid.UUID, in service.TemplateInput) (*model.Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error)
	ListTemplates(ctx context.Context, practitionerID string) ([]*model.Template, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type Generator interface {
	Generate(ctx context.Context, templateID uuid.UUID, from, to time.Time) (int, error)
	ListSlots(ctx context.Context, practitionerID string, from, to time.Time) ([]*model.Slot, error)
}

type ScheduleAdmin interface {
	GetSchedule(ctx context.Context, practitionerID string) (*model.PractitionerSchedule, error)
	UpsertSchedule(ctx context.Context, schedule *model.PractitionerSchedule) error
	PutOverride(ctx context.Context, practitionerID string, o model.DateOverride) error
	DeleteOverride(ctx context.Context, practitionerID, date string) error
}

type Availability interface {
	AvailableTimes(ctx context.Context, practitionerID, locationID, date string) ([]service.TimePoint, error)
	AvailableDates(ctx context.Context, practitionerID string, days int) ([]string, error)
}

type Bookings interface {
	Admit(ctx context.Context, req service.AdmitRequest) (*model.Appointment, error)
	WalkIn(ctx context.Context, req service.AdmitRequest) (*model.Appointment, error)
	Cancel(ctx context.Context, bookingID string) (*model.Appointment, error)
	Complete(ctx context.Context, bookingID string) (*model.Appointment, error)
	Reschedule(ctx context.Context, bookingID, date, timeOfDay string) (*model.Appointment, error)
	ListByDate(ctx context.Context, date string) ([]*model.Appointment, error)
	CountNonCancelled(ctx context.Context, from, to string) (int, error)
}

type Directory interface {
	SavePractitioner(ctx context.Context, p *model.Practitioner) error
	SaveLocation(ctx context.Context, l *model.Location) error
}

// Services зависимости обработчиков. Health может быть nil.
type Services struct {
	Templates    TemplateAdmin
	Generator    Generator
	Schedules    ScheduleAdmin
	Availability Availability
	Bookings     Bookings
	Directory    Directory
	Health       func(ctx context.Context) error
}

type Handler struct {
	svc    Services
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler loc задаёт региональный часовой пояс для дат в запросах
func NewHandler(svc Services, loc *time.Location, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, loc: loc, logger: logger}
}

// NewServer собирает echo с логированием запросов и всеми маршрутами
func NewServer(h *Handler, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/health", h.Health)
	h.RegisterRoutes(e.Group("/api"))

	return e
}

// RegisterRoutes регистрирует маршруты API на группе
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/templates", h.CreateTemplate)
	g.GET("/templates", h.ListTemplates)
	g.GET("/templates/:id", h.GetTemplate)
	g.PUT("/templates/:id", h.UpdateTemplate)
	g.PATCH("/templates/:id/active", h.SetTemplateActive)
	g.DELETE("/templates/:id", h.DeleteTemplate)
	g.POST("/templates/:id/generate", h.GenerateSlots)

	g.GET("/slots", h.ListSlots)

	g.GET("/practitioners/:id/schedule", h.GetSchedule)
	g.PUT("/practitioners/:id/schedule", h.PutSchedule)
	g.PUT("/practitioners/:id/overrides/:date", h.PutOverride)
	g.DELETE("/practitioners/:id/overrides/:date", h.DeleteOverride)

	g.GET("/availability", h.AvailableTimes)
	g.GET("/availability/dates", h.AvailableDates)

	g.POST("/appointments", h.Admit)
	g.POST("/appointments/walk-in", h.WalkIn)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/count", h.CountAppointments)
	g.PUT("/appointments/:bookingId/cancel", h.CancelAppointment)
	g.PUT("/appointments/:bookingId/complete", h.CompleteAppointment)
	g.PUT("/appointments/:bookingId/reschedule", h.RescheduleAppointment)

	g.PUT("/directory/practitioners/:id", h.PutPractitioner)
	g.PUT("/directory/locations/:id", h.PutLocation)
}

// Health отвечает 503, если хранилище недоступно
func (h *Handler) Health(c echo.Context) error {
	if h.svc.Health != nil {
		if err := h.svc.Health(c.Request().Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// fail переводит ошибку сервиса в HTTP-статус
func (h *Handler) fail(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store temporarily unavailable, retry later")
	}
	h.logger.Error("Unhandled service error", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	})
}
