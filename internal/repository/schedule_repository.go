package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScheduleRepository стандартные окна приёма врачей и окна на отдельные даты.
// Время хранится в минутах от полуночи.
type ScheduleRepository struct {
	*base.Repository
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{Repository: base.NewRepository(pool)}
}

// Get получает расписание врача вместе с окнами на даты
func (r *ScheduleRepository) Get(ctx context.Context, practitionerID string) (*model.PractitionerSchedule, error) {
	query := `
		SELECT practitioner_id, location_id, start_minute, end_minute, slot_duration_minutes,
		       unavailable_days, unavailable_dates, updated_at
		FROM practitioner_schedules
		WHERE practitioner_id = $1
	`

	var s model.PractitionerSchedule
	var start, end int
	var days []string
	err := r.QueryRow(ctx, query, practitionerID).Scan(
		&s.PractitionerID,
		&s.LocationID,
		&start,
		&end,
		&s.SlotDurationMinutes,
		&days,
		&s.UnavailableDates,
		&s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule: %w", base.Classify(err))
	}
	s.StartTime = model.TimeOfDay(start)
	s.EndTime = model.TimeOfDay(end)
	for _, d := range days {
		s.UnavailableDaysOfWeek = append(s.UnavailableDaysOfWeek, model.DayOfWeek(d))
	}

	overrides, err := r.overrides(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	s.Overrides = overrides

	return &s, nil
}

func (r *ScheduleRepository) overrides(ctx context.Context, practitionerID string) ([]model.DateOverride, error) {
	rows, err := r.Query(ctx, `
		SELECT date, start_minute, end_minute, slot_duration_minutes
		FROM schedule_overrides
		WHERE practitioner_id = $1
		ORDER BY date
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", base.Classify(err))
	}
	defer rows.Close()

	var overrides []model.DateOverride
	for rows.Next() {
		var o model.DateOverride
		var start, end int
		if err := rows.Scan(&o.Date, &start, &end, &o.SlotDurationMinutes); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		o.StartTime = model.TimeOfDay(start)
		o.EndTime = model.TimeOfDay(end)
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", base.Classify(err))
	}

	return overrides, nil
}

// Upsert создаёт или заменяет расписание врача, окна на даты не трогает
func (r *ScheduleRepository) Upsert(ctx context.Context, s *model.PractitionerSchedule) error {
	days := make([]string, 0, len(s.UnavailableDaysOfWeek))
	for _, d := range s.UnavailableDaysOfWeek {
		days = append(days, string(d))
	}
	dates := s.UnavailableDates
	if dates == nil {
		dates = []string{}
	}

	query := `
		INSERT INTO practitioner_schedules (practitioner_id, location_id, start_minute, end_minute,
		                                    slot_duration_minutes, unavailable_days, unavailable_dates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (practitioner_id) DO UPDATE SET
			location_id = EXCLUDED.location_id,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			unavailable_days = EXCLUDED.unavailable_days,
			unavailable_dates = EXCLUDED.unavailable_dates,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.ExecAffected(ctx, query,
		s.PractitionerID,
		s.LocationID,
		int(s.StartTime),
		int(s.EndTime),
		s.SlotDurationMinutes,
		days,
		dates,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", base.Classify(err))
	}
	return nil
}

// PutOverride задаёт окно на дату, false если у врача нет расписания
func (r *ScheduleRepository) PutOverride(ctx context.Context, practitionerID string, o model.DateOverride) (bool, error) {
	query := `
		INSERT INTO schedule_overrides (practitioner_id, date, start_minute, end_minute, slot_duration_minutes)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM practitioner_schedules WHERE practitioner_id = $1)
		ON CONFLICT (practitioner_id, date) DO UPDATE SET
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes
	`

	n, err := r.ExecAffected(ctx, query, practitionerID, o.Date, int(o.StartTime), int(o.EndTime), o.SlotDurationMinutes)
	if err != nil {
		return false, fmt.Errorf("put override: %w", base.Classify(err))
	}
	return n == 1, nil
}

// DeleteOverride удаляет окно на дату
func (r *ScheduleRepository) DeleteOverride(ctx context.Context, practitionerID, date string) (bool, error) {
	n, err := r.ExecAffected(ctx,
		`DELETE FROM schedule_overrides WHERE practitioner_id = $1 AND date = $2`,
		practitionerID, date,
	)
	if err != nil {
		return false, fmt.Errorf("delete override: %w", base.Classify(err))
	}
	return n == 1, nil
}
