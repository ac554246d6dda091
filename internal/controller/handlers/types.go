package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Generator interface {
	Generate(ctx context.Context, templateID uuid.UUID, from, to time.Time) (int, error)
	GenerateAllActive(ctx context.Context, from, to time.Time) (int, error)
}

type Availability interface {
	AvailableTimes(ctx context.Context, practitionerID, locationID, date string) ([]service.TimePoint, error)
}

type Appointments interface {
	ListByDate(ctx context.Context, date string) ([]*model.Appointment, error)
}

// Handlers обработчики административных команд бота
type Handlers struct {
	generator    Generator
	availability Availability
	appointments Appointments
	clock        service.Clock
	adminIDs     map[int64]bool
	logger       *zap.Logger
}

// NewHandlers создаёт обработчики. Пустой adminIDs закрывает все команды, кроме /start и /help.
func NewHandlers(
	generator Generator,
	availability Availability,
	appointments Appointments,
	clock service.Clock,
	adminIDs []int64,
	logger *zap.Logger,
) *Handlers {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Handlers{
		generator:    generator,
		availability: availability,
		appointments: appointments,
		clock:        clock,
		adminIDs:     admins,
		logger:       logger,
	}
}
