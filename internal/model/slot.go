package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot материализованный слот приёма
type Slot struct {
	ID             string    `json:"slotId"`
	TemplateID     uuid.UUID `json:"templateId"`
	RuleID         string    `json:"sourceRuleId"`
	PractitionerID string    `json:"practitionerId"`
	LocationID     string    `json:"locationId"`
	StartAt        time.Time `json:"start"`
	EndAt          time.Time `json:"end"`
	LocalDate      string    `json:"localDate"`
	Available      bool      `json:"available"`
	Recurrence     string    `json:"recurrenceClass"`
	// Откуда слот взялся: кем создан, локальное начало, диапазон генерации
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SlotID детерминированный идентификатор слота: templateId|ruleId|utcStart
func SlotID(templateID uuid.UUID, ruleID string, start time.Time) string {
	return templateID.String() + "|" + ruleID + "|" + start.UTC().Format(time.RFC3339)
}

// Overlaps проверяет пересечение полуоткрытых интервалов [start,end)
func (s *Slot) Overlaps(other *Slot) bool {
	return s.StartAt.Before(other.EndAt) && other.StartAt.Before(s.EndAt)
}
