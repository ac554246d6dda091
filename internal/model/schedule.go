package model

import "time"

// PractitionerSchedule стандартное окно приёма врача и исключения
type PractitionerSchedule struct {
	PractitionerID        string         `json:"practitionerId"`
	LocationID            string         `json:"locationId"`
	StartTime             TimeOfDay      `json:"startTime"`
	EndTime               TimeOfDay      `json:"endTime"`
	SlotDurationMinutes   int            `json:"slotDurationMinutes"`
	UnavailableDaysOfWeek []DayOfWeek    `json:"unavailableDaysOfWeek"`
	UnavailableDates      []string       `json:"unavailableDates"`
	Overrides             []DateOverride `json:"customDateSlots,omitempty"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// DateOverride окно приёма на конкретную дату, важнее стандартного
type DateOverride struct {
	Date                string    `json:"date"`
	StartTime           TimeOfDay `json:"startTime"`
	EndTime             TimeOfDay `json:"endTime"`
	SlotDurationMinutes *int      `json:"slotDurationMinutes,omitempty"`
}

// UnavailableOn проверяет списки исключений
func (s *PractitionerSchedule) UnavailableOn(date time.Time) bool {
	dow := DayOfWeekOf(date.Weekday())
	for _, d := range s.UnavailableDaysOfWeek {
		if d == dow {
			return true
		}
	}
	key := date.Format(DateLayout)
	for _, d := range s.UnavailableDates {
		if d == key {
			return true
		}
	}
	return false
}

// Override возвращает окно на дату, если оно задано
func (s *PractitionerSchedule) Override(date string) (DateOverride, bool) {
	for _, o := range s.Overrides {
		if o.Date == date {
			return o, true
		}
	}
	return DateOverride{}, false
}

// Window эффективное окно и шаг на дату
func (s *PractitionerSchedule) Window(date string) (start, end TimeOfDay, durationMinutes int) {
	start, end, durationMinutes = s.StartTime, s.EndTime, s.SlotDurationMinutes
	if o, ok := s.Override(date); ok {
		start, end = o.StartTime, o.EndTime
		if o.SlotDurationMinutes != nil {
			durationMinutes = *o.SlotDurationMinutes
		}
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultSlotDurationMinutes
	}
	return start, end, durationMinutes
}
