package model

import (
	"fmt"
	"strings"
	"time"
)

// DayOfWeek день недели в виде "MONDAY".."SUNDAY"
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var weekdays = map[DayOfWeek]time.Weekday{
	Sunday:    time.Sunday,
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
}

// ParseDayOfWeek принимает название дня в любом регистре
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := weekdays[d]; !ok {
		return "", fmt.Errorf("unknown day of week %q", s)
	}
	return d, nil
}

// DayOfWeekOf возвращает день недели для time.Weekday
func DayOfWeekOf(w time.Weekday) DayOfWeek {
	for d, wd := range weekdays {
		if wd == w {
			return d
		}
	}
	return ""
}

// Weekday переводит в time.Weekday. Второй результат false для неизвестного значения.
func (d DayOfWeek) Weekday() (time.Weekday, bool) {
	w, ok := weekdays[d]
	return w, ok
}

// RecurrenceClass частота повторения правила
type RecurrenceClass string

const (
	RecurrenceWeekly   RecurrenceClass = "WEEKLY"
	RecurrenceBiweekly RecurrenceClass = "BIWEEKLY"
	RecurrenceMonthly  RecurrenceClass = "MONTHLY"
)

// Priority определяет порядок разбора правил за один день: реже повторяется, раньше занимает время
func (c RecurrenceClass) Priority() int {
	switch c {
	case RecurrenceMonthly:
		return 3
	case RecurrenceBiweekly:
		return 2
	default:
		return 1
	}
}

// Valid сообщает, известен ли класс. Пустое значение трактуется как WEEKLY.
func (c RecurrenceClass) Valid() bool {
	switch c {
	case "", RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// MonthOccurrence позиция дня недели внутри месяца
type MonthOccurrence string

const (
	OccurrenceFirst  MonthOccurrence = "FIRST"
	OccurrenceSecond MonthOccurrence = "SECOND"
	OccurrenceThird  MonthOccurrence = "THIRD"
	OccurrenceFourth MonthOccurrence = "FOURTH"
	OccurrenceLast   MonthOccurrence = "LAST"
)

// Ordinal возвращает номер вхождения 1..4, для LAST и неизвестных значений 0
func (o MonthOccurrence) Ordinal() int {
	switch o {
	case OccurrenceFirst:
		return 1
	case OccurrenceSecond:
		return 2
	case OccurrenceThird:
		return 3
	case OccurrenceFourth:
		return 4
	}
	return 0
}

// Valid сообщает, известно ли значение
func (o MonthOccurrence) Valid() bool {
	return o == OccurrenceLast || o.Ordinal() > 0
}

// Matches проверяет, попадает ли дата на это вхождение дня недели в месяце
func (o MonthOccurrence) Matches(date time.Time) bool {
	if o == OccurrenceLast {
		return date.AddDate(0, 0, 7).Month() != date.Month()
	}
	n := o.Ordinal()
	return n > 0 && (date.Day()-1)/7+1 == n
}

// RecurrenceRule одно повторяющееся окно приёма в одной локации
type RecurrenceRule struct {
	RuleID          string          `json:"ruleId"`
	DayOfWeek       DayOfWeek       `json:"dayOfWeek"`
	StartTime       *TimeOfDay      `json:"startTime"`
	EndTime         *TimeOfDay      `json:"endTime"`
	LocationID      string          `json:"locationId"`
	Recurrence      RecurrenceClass `json:"recurrenceClass,omitempty"`
	MonthOccurrence MonthOccurrence `json:"monthOccurrence,omitempty"`
}

// Class возвращает класс повторения, по умолчанию WEEKLY
func (r RecurrenceRule) Class() RecurrenceClass {
	if r.Recurrence == "" {
		return RecurrenceWeekly
	}
	return r.Recurrence
}

// HasWindow сообщает, заданы ли начало и конец и идёт ли начало раньше конца
func (r RecurrenceRule) HasWindow() bool {
	return r.StartTime != nil && r.EndTime != nil && *r.StartTime < *r.EndTime
}

// OccursOn проверяет совпадение дня недели
func (r RecurrenceRule) OccursOn(date time.Time) bool {
	w, ok := r.DayOfWeek.Weekday()
	return ok && w == date.Weekday()
}
