package notification

import (
	"context"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"go.uber.org/zap"
)

// LogNotifier пишет события в журнал
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, e model.BookingEvent) error {
	fields := []zap.Field{
		zap.String("kind", string(e.Kind)),
		zap.String("booking_id", e.BookingID),
		zap.String("status", string(e.Status)),
		zap.String("practitioner_id", e.PractitionerID),
		zap.String("location_id", e.LocationID),
		zap.String("date", e.Date),
		zap.String("time", e.Time),
	}
	if e.PreviousBookingID != "" {
		fields = append(fields, zap.String("previous_booking_id", e.PreviousBookingID))
	}
	n.logger.Info("Booking event", fields...)
	return nil
}
