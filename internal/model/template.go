package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSlotDurationMinutes длительность слота, если она не задана
const DefaultSlotDurationMinutes = 15

// Template набор правил расписания одного врача
type Template struct {
	ID                  uuid.UUID        `json:"id"`
	PractitionerID      string           `json:"practitionerId"`
	SlotDurationMinutes int              `json:"slotDurationMinutes"`
	Active              bool             `json:"active"`
	Rules               []RecurrenceRule `json:"rules"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`

	// Снимок служебного состояния генерации (не хранится в templates)
	RuleCounters           map[string]int    `json:"ruleCounters,omitempty"`
	RuleLastGeneratedMonth map[string]string `json:"ruleLastGeneratedMonth,omitempty"`
}

// Rule ищет правило по идентификатору
func (t *Template) Rule(ruleID string) (RecurrenceRule, bool) {
	for _, r := range t.Rules {
		if r.RuleID == ruleID {
			return r, true
		}
	}
	return RecurrenceRule{}, false
}

// RuleState состояние генерации одного правила
type RuleState struct {
	RuleID             string  `json:"ruleId"`
	Counter            int     `json:"counter"`
	LastGeneratedMonth *string `json:"lastGeneratedMonth,omitempty"`
}
