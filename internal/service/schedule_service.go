package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"go.uber.org/zap"
)

// ScheduleService стандартное окно приёма врача и окна на отдельные даты
type ScheduleService struct {
	schedules ScheduleStore
	clock     Clock
	logger    *zap.Logger
}

func NewScheduleService(schedules ScheduleStore, clock Clock, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{schedules: schedules, clock: clock, logger: logger}
}

func (s *ScheduleService) GetSchedule(ctx context.Context, practitionerID string) (*model.PractitionerSchedule, error) {
	schedule, err := s.schedules.Get(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("schedule for %s: %w", practitionerID, ErrNotFound)
	}
	return schedule, nil
}

// UpsertSchedule сохраняет стандартное окно и списки исключений.
// Окна на отдельные даты меняются через PutOverride/DeleteOverride.
func (s *ScheduleService) UpsertSchedule(ctx context.Context, schedule *model.PractitionerSchedule) error {
	schedule.PractitionerID = strings.TrimSpace(schedule.PractitionerID)
	schedule.LocationID = strings.TrimSpace(schedule.LocationID)
	if schedule.PractitionerID == "" || schedule.LocationID == "" {
		return fmt.Errorf("%w: practitioner_id and location_id are required", ErrInvalidInput)
	}
	if schedule.StartTime >= schedule.EndTime {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInput, schedule.StartTime, schedule.EndTime)
	}
	if schedule.SlotDurationMinutes == 0 {
		schedule.SlotDurationMinutes = model.DefaultSlotDurationMinutes
	}
	if schedule.SlotDurationMinutes < 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}

	for i, d := range schedule.UnavailableDaysOfWeek {
		day, err := model.ParseDayOfWeek(string(d))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		schedule.UnavailableDaysOfWeek[i] = day
	}
	for _, d := range schedule.UnavailableDates {
		if _, err := model.ParseDate(d, s.clock.Location()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	schedule.UpdatedAt = s.clock.Now()
	if err := s.schedules.Upsert(ctx, schedule); err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	s.logger.Info("Schedule saved",
		zap.String("practitioner_id", schedule.PractitionerID),
		zap.String("location_id", schedule.LocationID))
	return nil
}

// PutOverride задаёт окно приёма на дату
func (s *ScheduleService) PutOverride(ctx context.Context, practitionerID string, o model.DateOverride) error {
	if _, err := model.ParseDate(o.Date, s.clock.Location()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.StartTime >= o.EndTime {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidInput, o.StartTime, o.EndTime)
	}
	if o.SlotDurationMinutes != nil && *o.SlotDurationMinutes <= 0 {
		return fmt.Errorf("%w: slot duration must be positive", ErrInvalidInput)
	}

	ok, err := s.schedules.PutOverride(ctx, practitionerID, o)
	if err != nil {
		return fmt.Errorf("put override: %w", err)
	}
	if !ok {
		return fmt.Errorf("schedule for %s: %w", practitionerID, ErrNotFound)
	}

	s.logger.Info("Date override saved",
		zap.String("practitioner_id", practitionerID),
		zap.String("date", o.Date))
	return nil
}

func (s *ScheduleService) DeleteOverride(ctx context.Context, practitionerID, date string) error {
	ok, err := s.schedules.DeleteOverride(ctx, practitionerID, date)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if !ok {
		return fmt.Errorf("override %s on %s: %w", practitionerID, date, ErrNotFound)
	}
	return nil
}
