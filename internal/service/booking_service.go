package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// bookingIDAttempts первая попытка и один повтор после коллизии
const bookingIDAttempts = 2

// BookingIDFunc формирует номер записи. attempt 0 основная схема, 1 повтор после коллизии.
type BookingIDFunc func(now time.Time, attempt int) string

// DefaultBookingID номер по секундам, при повторе по миллисекундам
func DefaultBookingID(now time.Time, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("BID-%d", now.Unix())
	}
	return fmt.Sprintf("BID-%d", now.UnixMilli())
}

// AdmitRequest запрос на запись к врачу
type AdmitRequest struct {
	PractitionerID string `json:"doctorId"`
	LocationID     string `json:"locationId"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PatientID      string `json:"patientId"`
	Phone          string `json:"phone,omitempty"`
}

type BookingService struct {
	appointments AppointmentStore
	notifier     Notifier
	clock        Clock
	bookingID    BookingIDFunc
	logger       *zap.Logger
}

func NewBookingService(
	appointments AppointmentStore,
	notifier Notifier,
	clock Clock,
	bookingID BookingIDFunc,
	logger *zap.Logger,
) *BookingService {
	if bookingID == nil {
		bookingID = DefaultBookingID
	}
	return &BookingService{
		appointments: appointments,
		notifier:     notifier,
		clock:        clock,
		bookingID:    bookingID,
		logger:       logger,
	}
}

// Admit записывает пациента. Статус решается в момент записи: CONFIRMED, если время
// свободно, иначе WAITLISTED. Уведомление уходит только после сохранения записи.
func (s *BookingService) Admit(ctx context.Context, req AdmitRequest) (*model.Appointment, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	appt, err := s.admit(ctx, req, model.AppointmentConfirmed)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.EventFor(model.EventAdmitted, appt))
	return appt, nil
}

// WalkIn фиксирует пациента, пришедшего без записи. Занятость не проверяется.
func (s *BookingService) WalkIn(ctx context.Context, req AdmitRequest) (*model.Appointment, error) {
	if strings.TrimSpace(req.Time) == "" {
		req.Time = s.clock.Now().Format(model.TimeLayout)
	}
	if strings.TrimSpace(req.Date) == "" {
		req.Date = s.clock.Now().Format(model.DateLayout)
	}
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	appt, err := s.admit(ctx, req, model.AppointmentWalkIn)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.EventFor(model.EventWalkIn, appt))
	return appt, nil
}

// admit перепроверяет занятость и пишет запись. Для WALK_IN проверки нет.
func (s *BookingService) admit(ctx context.Context, req AdmitRequest, want model.AppointmentStatus) (*model.Appointment, error) {
	status := want
	if want == model.AppointmentConfirmed {
		occupied, err := s.appointments.HasActive(ctx, req.PractitionerID, req.LocationID, req.Date, req.Time)
		if err != nil {
			return nil, fmt.Errorf("check occupancy: %w", err)
		}
		if occupied {
			status = model.AppointmentWaitlisted
		}
	}

	now := s.clock.Now()
	appt := &model.Appointment{
		ID:             uuid.New(),
		PractitionerID: req.PractitionerID,
		LocationID:     req.LocationID,
		PatientID:      req.PatientID,
		Phone:          req.Phone,
		Date:           req.Date,
		Time:           req.Time,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for attempt := 0; attempt < bookingIDAttempts; attempt++ {
		appt.BookingID = s.bookingID(now, attempt)

		err := s.write(ctx, appt)
		if err == nil {
			s.logger.Info("Appointment admitted",
				zap.String("booking_id", appt.BookingID),
				zap.String("status", string(appt.Status)),
				zap.String("practitioner_id", appt.PractitionerID),
				zap.String("location_id", appt.LocationID),
				zap.String("date", appt.Date),
				zap.String("time", appt.Time))
			return appt, nil
		}
		if !errors.Is(err, base.ErrDuplicate) {
			return nil, fmt.Errorf("save appointment: %w", err)
		}

		s.logger.Warn("Booking id already taken, regenerating",
			zap.String("booking_id", appt.BookingID),
			zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("%w: booking id %s already taken", ErrConflict, appt.BookingID)
}

// write сохраняет запись. Подтверждённая запись пишется условно: если время уже
// закреплено за другой подтверждённой записью, гонка проиграна и запись уходит в лист ожидания.
func (s *BookingService) write(ctx context.Context, appt *model.Appointment) error {
	if appt.Status != model.AppointmentConfirmed {
		return s.appointments.Insert(ctx, appt)
	}

	ok, err := s.appointments.InsertConfirmed(ctx, appt)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	s.logger.Info("Time was claimed concurrently, moving to waitlist",
		zap.String("practitioner_id", appt.PractitionerID),
		zap.String("date", appt.Date),
		zap.String("time", appt.Time))

	appt.Status = model.AppointmentWaitlisted
	return s.appointments.Insert(ctx, appt)
}

// Cancel отменяет запись
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*model.Appointment, error) {
	appt, err := s.transition(ctx, bookingID, model.AppointmentCancelled,
		model.AppointmentConfirmed, model.AppointmentWaitlisted, model.AppointmentWalkIn)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.EventFor(model.EventCancelled, appt))
	return appt, nil
}

// Complete отмечает, что приём состоялся
func (s *BookingService) Complete(ctx context.Context, bookingID string) (*model.Appointment, error) {
	appt, err := s.transition(ctx, bookingID, model.AppointmentCompleted,
		model.AppointmentConfirmed, model.AppointmentWalkIn)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.EventFor(model.EventCompleted, appt))
	return appt, nil
}

// Reschedule переносит запись на другое время. Исходная запись отменяется только
// если новое время удалось подтвердить. Занятое время даёт ErrConflict, исходная запись не меняется.
func (s *BookingService) Reschedule(ctx context.Context, bookingID, date, timeOfDay string) (*model.Appointment, error) {
	old, err := s.appointments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if old == nil {
		return nil, fmt.Errorf("appointment %s: %w", bookingID, ErrNotFound)
	}
	if old.Status != model.AppointmentConfirmed && old.Status != model.AppointmentWaitlisted {
		return nil, fmt.Errorf("%w: appointment %s is %s", ErrConflict, bookingID, old.Status)
	}

	req, err := s.normalize(AdmitRequest{
		PractitionerID: old.PractitionerID,
		LocationID:     old.LocationID,
		Date:           date,
		Time:           timeOfDay,
		PatientID:      old.PatientID,
		Phone:          old.Phone,
	})
	if err != nil {
		return nil, err
	}
	if req.Date == old.Date && req.Time == old.Time {
		return nil, fmt.Errorf("%w: appointment is already at %s %s", ErrInvalidInput, req.Date, req.Time)
	}

	occupied, err := s.appointments.HasActive(ctx, req.PractitionerID, req.LocationID, req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("check occupancy: %w", err)
	}
	if occupied {
		return nil, fmt.Errorf("%w: %s %s is already booked", ErrConflict, req.Date, req.Time)
	}

	next, err := s.admit(ctx, req, model.AppointmentConfirmed)
	if err != nil {
		return nil, err
	}
	if next.Status != model.AppointmentConfirmed {
		// Время заняли между проверкой и записью: убираем свою запись из листа ожидания
		if _, err := s.appointments.UpdateStatus(ctx, next.BookingID, model.AppointmentCancelled, next.Status); err != nil {
			s.logger.Error("Failed to cancel waitlisted reschedule attempt",
				zap.String("booking_id", next.BookingID), zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %s %s was booked concurrently", ErrConflict, req.Date, req.Time)
	}

	ok, err := s.appointments.UpdateStatus(ctx, old.BookingID, model.AppointmentCancelled, old.Status)
	if err != nil {
		return nil, fmt.Errorf("cancel previous appointment: %w", err)
	}
	if !ok {
		s.logger.Warn("Previous appointment changed during reschedule",
			zap.String("booking_id", old.BookingID))
	}

	event := model.EventFor(model.EventRescheduled, next)
	event.PreviousBookingID = old.BookingID
	s.notify(ctx, event)

	return next, nil
}

// transition меняет статус записи, если текущий статус входит в from
func (s *BookingService) transition(ctx context.Context, bookingID string, to model.AppointmentStatus, from ...model.AppointmentStatus) (*model.Appointment, error) {
	appt, err := s.appointments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, fmt.Errorf("appointment %s: %w", bookingID, ErrNotFound)
	}

	ok, err := s.appointments.UpdateStatus(ctx, bookingID, to, from...)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: appointment %s is %s", ErrConflict, bookingID, appt.Status)
	}

	s.logger.Info("Appointment status changed",
		zap.String("booking_id", bookingID),
		zap.String("from", string(appt.Status)),
		zap.String("to", string(to)))

	appt.Status = to
	appt.UpdatedAt = s.clock.Now()
	return appt, nil
}

// ListByDate записи на дату по возрастанию времени
func (s *BookingService) ListByDate(ctx context.Context, date string) ([]*model.Appointment, error) {
	day, err := model.ParseDate(date, s.clock.Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	list, err := s.appointments.ListByDate(ctx, day.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Time < list[j].Time })
	return list, nil
}

// CountNonCancelled количество неотменённых записей в диапазоне дат включительно
func (s *BookingService) CountNonCancelled(ctx context.Context, from, to string) (int, error) {
	loc := s.clock.Location()
	fromDay, err := model.ParseDate(from, loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	toDay, err := model.ParseDate(to, loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if toDay.Before(fromDay) {
		return 0, fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
	}

	n, err := s.appointments.CountNonCancelled(ctx, fromDay.Format(model.DateLayout), toDay.Format(model.DateLayout))
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (s *BookingService) normalize(req AdmitRequest) (AdmitRequest, error) {
	req.PractitionerID = strings.TrimSpace(req.PractitionerID)
	req.LocationID = strings.TrimSpace(req.LocationID)
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.Phone = strings.TrimSpace(req.Phone)

	if req.PractitionerID == "" {
		return req, fmt.Errorf("%w: doctor_id is required", ErrInvalidInput)
	}
	if req.LocationID == "" {
		return req, fmt.Errorf("%w: location_id is required", ErrInvalidInput)
	}
	if req.PatientID == "" && req.Phone == "" {
		return req, fmt.Errorf("%w: patient_id or phone is required", ErrInvalidInput)
	}

	day, err := model.ParseDate(req.Date, s.clock.Location())
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tod, err := model.ParseTimeOfDay(req.Time)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	req.Date = day.Format(model.DateLayout)
	req.Time = tod.String()
	return req, nil
}

// notify доставляет событие. Ошибка доставки не откатывает уже сохранённую запись.
func (s *BookingService) notify(ctx context.Context, event model.BookingEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to deliver booking event",
			zap.String("kind", string(event.Kind)),
			zap.String("booking_id", event.BookingID),
			zap.Error(err))
	}
}
