package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"go.uber.org/zap"
)

const (
	defaultLeadTime      = time.Hour
	defaultAvailableDays = 90
	maxAvailableDays     = 366
)

// TimeAvailability отметка точки времени
type TimeAvailability string

const (
	TimeAvailable        TimeAvailability = "AVAILABLE"
	TimeWaitlistEligible TimeAvailability = "WAITLIST_ELIGIBLE"
)

// TimePoint точка времени, которую можно предложить пациенту
type TimePoint struct {
	Time   string           `json:"time"`
	Status TimeAvailability `json:"status"`
}

type AvailabilityService struct {
	schedules    ScheduleStore
	appointments AppointmentStore
	clock        Clock
	leadTime     time.Duration
	logger       *zap.Logger
}

func NewAvailabilityService(
	schedules ScheduleStore,
	appointments AppointmentStore,
	clock Clock,
	leadTime time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	if leadTime <= 0 {
		leadTime = defaultLeadTime
	}
	return &AvailabilityService{
		schedules:    schedules,
		appointments: appointments,
		clock:        clock,
		leadTime:     leadTime,
		logger:       logger,
	}
}

// AvailableTimes возвращает упорядоченные точки времени на дату.
// Результат носит справочный характер: окончательное решение принимает BookingService.Admit.
func (s *AvailabilityService) AvailableTimes(ctx context.Context, practitionerID, locationID, date string) ([]TimePoint, error) {
	practitionerID = strings.TrimSpace(practitionerID)
	locationID = strings.TrimSpace(locationID)
	if practitionerID == "" || locationID == "" {
		return nil, fmt.Errorf("%w: practitioner_id and location_id are required", ErrInvalidInput)
	}

	loc := s.clock.Location()
	day, err := model.ParseDate(date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	dateKey := day.Format(model.DateLayout)

	schedule, err := s.schedules.Get(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil || schedule.LocationID != locationID {
		s.logger.Warn("No schedule for practitioner at location",
			zap.String("practitioner_id", practitionerID),
			zap.String("location_id", locationID))
		return []TimePoint{}, nil
	}

	if schedule.UnavailableOn(day) {
		return []TimePoint{}, nil
	}

	start, end, step := schedule.Window(dateKey)

	booked, err := s.appointments.ListActive(ctx, practitionerID, locationID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	claimed := make(map[string]bool, len(booked))
	for _, a := range booked {
		claimed[a.Time] = true
	}

	now := s.clock.Now().In(loc)
	var threshold time.Time
	if model.DayStart(now, loc).Equal(day) {
		threshold = now.Add(s.leadTime)
	}

	points := []TimePoint{}
	for _, c := range sliceWindow(start, end, step) {
		if !threshold.IsZero() && c.start.On(day).Before(threshold) {
			continue
		}
		status := TimeAvailable
		if claimed[c.start.String()] {
			status = TimeWaitlistEligible
		}
		points = append(points, TimePoint{Time: c.start.String(), Status: status})
	}

	return points, nil
}

// AvailableDates возвращает даты начиная с сегодняшней, на которые у врача есть приём
func (s *AvailabilityService) AvailableDates(ctx context.Context, practitionerID string, days int) ([]string, error) {
	practitionerID = strings.TrimSpace(practitionerID)
	if practitionerID == "" {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrInvalidInput)
	}
	if days <= 0 {
		days = defaultAvailableDays
	}
	if days > maxAvailableDays {
		return nil, fmt.Errorf("%w: days must not exceed %d", ErrInvalidInput, maxAvailableDays)
	}

	schedule, err := s.schedules.Get(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if schedule == nil {
		return []string{}, nil
	}

	loc := s.clock.Location()
	today := model.DayStart(s.clock.Now(), loc)

	dates := []string{}
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)
		if schedule.UnavailableOn(day) {
			continue
		}
		start, end, step := schedule.Window(day.Format(model.DateLayout))
		if start.Add(step) > end {
			continue
		}
		dates = append(dates, day.Format(model.DateLayout))
	}
	return dates, nil
}
