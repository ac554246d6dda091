package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, booking_id, practitioner_id, location_id, patient_id, phone,
	date, time, status, created_at, updated_at`

type AppointmentRepository struct {
	*base.Repository
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{Repository: base.NewRepository(pool)}
}

// HasActive проверяет, есть ли неотменённая запись на это время
func (r *AppointmentRepository) HasActive(ctx context.Context, practitionerID, locationID, date, timeOfDay string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $1 AND location_id = $2 AND date = $3 AND time = $4
			  AND status <> 'CANCELLED'
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, practitionerID, locationID, date, timeOfDay).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active appointment: %w", base.Classify(err))
	}
	return exists, nil
}

// ListActive получает неотменённые записи врача в месте приёма на дату
func (r *AppointmentRepository) ListActive(ctx context.Context, practitionerID, locationID, date string) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE practitioner_id = $1 AND location_id = $2 AND date = $3 AND status <> 'CANCELLED'
		ORDER BY time, created_at
	`
	return r.list(ctx, query, practitionerID, locationID, date)
}

// InsertConfirmed вставляет подтверждённую запись.
// Частичный уникальный индекс не даёт двум подтверждённым записям занять одно время,
// в этом случае возвращается false без ошибки.
func (r *AppointmentRepository) InsertConfirmed(ctx context.Context, a *model.Appointment) (bool, error) {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (practitioner_id, date, time) WHERE status = 'CONFIRMED' DO NOTHING
	`

	n, err := r.ExecAffected(ctx, query, appointmentArgs(a)...)
	if err != nil {
		return false, fmt.Errorf("insert confirmed appointment: %w", base.Classify(err))
	}
	return n == 1, nil
}

// Insert вставляет запись без проверки занятости
func (r *AppointmentRepository) Insert(ctx context.Context, a *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if _, err := r.ExecAffected(ctx, query, appointmentArgs(a)...); err != nil {
		return fmt.Errorf("insert appointment: %w", base.Classify(err))
	}
	return nil
}

// GetByBookingID получает запись по номеру брони
func (r *AppointmentRepository) GetByBookingID(ctx context.Context, bookingID string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE booking_id = $1`

	a, err := scanAppointment(r.QueryRow(ctx, query, bookingID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by booking id: %w", base.Classify(err))
	}
	return a, nil
}

// UpdateStatus меняет статус только из перечисленных состояний
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, bookingID string, to model.AppointmentStatus, from ...model.AppointmentStatus) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	query := `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE booking_id = $1 AND status = ANY($3)
	`

	n, err := r.ExecAffected(ctx, query, bookingID, string(to), allowed)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", base.Classify(err))
	}
	return n == 1, nil
}

// ListByDate получает все записи на дату по всем врачам
func (r *AppointmentRepository) ListByDate(ctx context.Context, date string) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE date = $1
		ORDER BY time, created_at
	`
	return r.list(ctx, query, date)
}

// CountNonCancelled считает неотменённые записи в диапазоне дат включительно
func (r *AppointmentRepository) CountNonCancelled(ctx context.Context, from, to string) (int, error) {
	query := `
		SELECT count(*) FROM appointments
		WHERE date >= $1 AND date <= $2 AND status <> 'CANCELLED'
	`

	var count int
	if err := r.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("count appointments: %w", base.Classify(err))
	}
	return count, nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]*model.Appointment, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", base.Classify(err))
	}
	defer rows.Close()

	var appointments []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", base.Classify(err))
	}

	return appointments, nil
}

func appointmentArgs(a *model.Appointment) []any {
	return []any{
		a.ID,
		a.BookingID,
		a.PractitionerID,
		a.LocationID,
		a.PatientID,
		a.Phone,
		a.Date,
		a.Time,
		string(a.Status),
		a.CreatedAt,
		a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.PractitionerID,
		&a.LocationID,
		&a.PatientID,
		&a.Phone,
		&a.Date,
		&a.Time,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	return &a, nil
}
