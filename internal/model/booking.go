package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentConfirmed  AppointmentStatus = "CONFIRMED"  // Время закреплено за пациентом
	AppointmentWaitlisted AppointmentStatus = "WAITLISTED" // Время занято, пациент в листе ожидания
	AppointmentCancelled  AppointmentStatus = "CANCELLED"  // Отменено
	AppointmentCompleted  AppointmentStatus = "COMPLETED"  // Приём состоялся
	AppointmentWalkIn     AppointmentStatus = "WALK_IN"    // Пациент пришёл без записи
)

// Occupies сообщает, занимает ли запись время у врача
func (s AppointmentStatus) Occupies() bool {
	return s != AppointmentCancelled
}

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	BookingID      string            `json:"bookingId"`
	PractitionerID string            `json:"doctorId"`
	LocationID     string            `json:"locationId"`
	PatientID      string            `json:"patientId"`
	Phone          string            `json:"phone,omitempty"`
	Date           string            `json:"date"` // 2006-01-02
	Time           string            `json:"time"` // 15:04
	Status         AppointmentStatus `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// EventKind тип события для уведомлений
type EventKind string

const (
	EventAdmitted    EventKind = "ADMITTED"
	EventCancelled   EventKind = "CANCELLED"
	EventRescheduled EventKind = "RESCHEDULED"
	EventCompleted   EventKind = "COMPLETED"
	EventWalkIn      EventKind = "WALK_IN"
)

// BookingEvent событие после фиксации записи
type BookingEvent struct {
	Kind           EventKind         `json:"kind"`
	BookingID      string            `json:"bookingId"`
	Status         AppointmentStatus `json:"status"`
	PractitionerID string            `json:"practitionerId"`
	LocationID     string            `json:"locationId"`
	PatientID      string            `json:"patientId,omitempty"`
	Date           string            `json:"date"`
	Time           string            `json:"time"`
	// Для переноса: запись, которая была отменена
	PreviousBookingID string `json:"previousBookingId,omitempty"`
}

// EventFor собирает событие по записи
func EventFor(kind EventKind, a *Appointment) BookingEvent {
	return BookingEvent{
		Kind:           kind,
		BookingID:      a.BookingID,
		Status:         a.Status,
		PractitionerID: a.PractitionerID,
		LocationID:     a.LocationID,
		PatientID:      a.PatientID,
		Date:           a.Date,
		Time:           a.Time,
	}
}
