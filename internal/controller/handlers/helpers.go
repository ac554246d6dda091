package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
)

// commandArgs аргументы команды без самой команды
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

// userMessage текст ошибки сервиса для администратора
func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "❌ Не найдено: " + err.Error()
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRule):
		return "❌ Неверные данные: " + err.Error()
	case errors.Is(err, service.ErrStoreUnavailable):
		return "⚠️ Хранилище временно недоступно, повторите позже."
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}

var appointmentStatusEmoji = map[model.AppointmentStatus]string{
	model.AppointmentConfirmed:  "✅",
	model.AppointmentWaitlisted: "⏳",
	model.AppointmentCancelled:  "❌",
	model.AppointmentCompleted:  "🏁",
	model.AppointmentWalkIn:     "🚶",
}

// FormatAppointment одна строка списка записей
func FormatAppointment(a *model.Appointment) string {
	patient := a.PatientID
	if patient == "" {
		patient = a.Phone
	}
	return fmt.Sprintf("%s %s %s · %s · %s", appointmentStatusEmoji[a.Status], a.Time, a.BookingID, a.PractitionerID, patient)
}

// FormatTimePoints точки приёма, занятые помечены как лист ожидания
func FormatTimePoints(points []service.TimePoint) string {
	var sb strings.Builder
	for i, p := range points {
		if i > 0 {
			sb.WriteString("\n")
		}
		if p.Status == service.TimeWaitlistEligible {
			fmt.Fprintf(&sb, "⏳ %s (лист ожидания)", p.Time)
		} else {
			fmt.Fprintf(&sb, "🟢 %s", p.Time)
		}
	}
	return sb.String()
}
