package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateInput поля шаблона, приходящие от администратора
type TemplateInput struct {
	PractitionerID      string                 `json:"practitionerId"`
	SlotDurationMinutes int                    `json:"slotDurationMinutes"`
	Active              *bool                  `json:"active,omitempty"`
	Rules               []model.RecurrenceRule `json:"rules"`
}

type TemplateService struct {
	templates TemplateStore
	ruleState RuleStateStore
	slots     SlotStore
	clock     Clock
	logger    *zap.Logger
}

func NewTemplateService(
	templates TemplateStore,
	ruleState RuleStateStore,
	slots SlotStore,
	clock Clock,
	logger *zap.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		ruleState: ruleState,
		slots:     slots,
		clock:     clock,
		logger:    logger,
	}
}

// CreateTemplate создаёт шаблон. Шаблон активен, если явно не указано обратное.
func (s *TemplateService) CreateTemplate(ctx context.Context, in TemplateInput) (*model.Template, error) {
	practitionerID := strings.TrimSpace(in.PractitionerID)
	if practitionerID == "" {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrInvalidInput)
	}

	duration, err := normalizeDuration(in.SlotDurationMinutes)
	if err != nil {
		return nil, err
	}

	rules, err := normalizeRules(in.Rules)
	if err != nil {
		return nil, err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	now := s.clock.Now()
	tmpl := &model.Template{
		ID:                  uuid.New(),
		PractitionerID:      practitionerID,
		SlotDurationMinutes: duration,
		Active:              active,
		Rules:               rules,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.Info("Template created",
		zap.String("template_id", tmpl.ID.String()),
		zap.String("practitioner_id", practitionerID),
		zap.Int("rules", len(rules)),
		zap.Int("slot_duration_minutes", duration))

	return tmpl, nil
}

// UpdateTemplate заменяет правила и длительность слота.
// Правило, по которому уже созданы слоты, менять нельзя: правку оформляют новым правилом.
// Длительность меняется только пока у шаблона нет слотов.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id uuid.UUID, in TemplateInput) (*model.Template, error) {
	tmpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	if in.PractitionerID != "" && in.PractitionerID != tmpl.PractitionerID {
		return nil, fmt.Errorf("%w: practitioner of a template cannot be changed", ErrInvalidInput)
	}

	duration, err := normalizeDuration(in.SlotDurationMinutes)
	if err != nil {
		return nil, err
	}

	rules, err := normalizeRules(in.Rules)
	if err != nil {
		return nil, err
	}

	if duration != tmpl.SlotDurationMinutes {
		for _, r := range tmpl.Rules {
			used, err := s.slots.RuleHasSlots(ctx, id, r.RuleID)
			if err != nil {
				return nil, fmt.Errorf("check rule slots: %w", err)
			}
			if used {
				return nil, fmt.Errorf("%w: template already has generated slots of %d minutes, create a new template for another duration",
					ErrInvalidRule, tmpl.SlotDurationMinutes)
			}
		}
	}

	for _, r := range rules {
		old, ok := tmpl.Rule(r.RuleID)
		if !ok || sameRule(old, r) {
			continue
		}
		used, err := s.slots.RuleHasSlots(ctx, id, r.RuleID)
		if err != nil {
			return nil, fmt.Errorf("check rule slots: %w", err)
		}
		if used {
			return nil, fmt.Errorf("%w: rule %s already has generated slots, add a new rule instead", ErrInvalidRule, r.RuleID)
		}
	}

	tmpl.SlotDurationMinutes = duration
	tmpl.Rules = rules
	if in.Active != nil {
		tmpl.Active = *in.Active
	}
	tmpl.UpdatedAt = s.clock.Now()

	ok, err := s.templates.Update(ctx, tmpl)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	s.logger.Info("Template updated",
		zap.String("template_id", id.String()),
		zap.Int("rules", len(rules)))

	return tmpl, nil
}

// GetTemplate возвращает шаблон вместе со снимком счётчиков правил
func (s *TemplateService) GetTemplate(ctx context.Context, id uuid.UUID) (*model.Template, error) {
	tmpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	states, err := s.ruleState.States(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule states: %w", err)
	}
	if len(states) > 0 {
		tmpl.RuleCounters = make(map[string]int, len(states))
		tmpl.RuleLastGeneratedMonth = make(map[string]string)
		for _, st := range states {
			tmpl.RuleCounters[st.RuleID] = st.Counter
			if st.LastGeneratedMonth != nil {
				tmpl.RuleLastGeneratedMonth[st.RuleID] = *st.LastGeneratedMonth
			}
		}
	}

	return tmpl, nil
}

// ListTemplates пустой practitionerID означает все шаблоны
func (s *TemplateService) ListTemplates(ctx context.Context, practitionerID string) ([]*model.Template, error) {
	templates, err := s.templates.List(ctx, strings.TrimSpace(practitionerID))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// SetActive включает или выключает шаблон
func (s *TemplateService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ok, err := s.templates.SetActive(ctx, id, active)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	if !ok {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	s.logger.Info("Template activity changed",
		zap.String("template_id", id.String()),
		zap.Bool("active", active))
	return nil
}

// DeleteTemplate удаляет шаблон. Уже созданные слоты остаются.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	ok, err := s.templates.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if !ok {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}

	s.logger.Info("Template deleted", zap.String("template_id", id.String()))
	return nil
}

func normalizeDuration(minutes int) (int, error) {
	switch {
	case minutes == 0:
		return model.DefaultSlotDurationMinutes, nil
	case minutes < 0:
		return 0, fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidInput, minutes)
	}
	return minutes, nil
}

// normalizeRules проверяет правила и выдаёт id тем, у кого его нет
func normalizeRules(rules []model.RecurrenceRule) ([]model.RecurrenceRule, error) {
	out := make([]model.RecurrenceRule, 0, len(rules))
	seen := make(map[string]bool, len(rules))

	for i, r := range rules {
		r.RuleID = strings.TrimSpace(r.RuleID)
		if r.RuleID == "" {
			r.RuleID = uuid.NewString()
		}
		if seen[r.RuleID] {
			return nil, fmt.Errorf("%w: duplicate rule id %s", ErrInvalidRule, r.RuleID)
		}
		seen[r.RuleID] = true

		day, err := model.ParseDayOfWeek(string(r.DayOfWeek))
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %v", ErrInvalidRule, i, err)
		}
		r.DayOfWeek = day

		if r.StartTime == nil || r.EndTime == nil {
			return nil, fmt.Errorf("%w: rule %d: start and end time are required", ErrInvalidRule, i)
		}
		if *r.StartTime >= *r.EndTime {
			return nil, fmt.Errorf("%w: rule %d: start %s must be before end %s", ErrInvalidRule, i, r.StartTime, r.EndTime)
		}

		r.LocationID = strings.TrimSpace(r.LocationID)
		if r.LocationID == "" {
			return nil, fmt.Errorf("%w: rule %d: location_id is required", ErrInvalidRule, i)
		}

		r.Recurrence = model.RecurrenceClass(strings.ToUpper(string(r.Recurrence)))
		if !r.Recurrence.Valid() {
			return nil, fmt.Errorf("%w: rule %d: unknown recurrence %q", ErrInvalidRule, i, r.Recurrence)
		}
		r.Recurrence = r.Class()

		r.MonthOccurrence = model.MonthOccurrence(strings.ToUpper(string(r.MonthOccurrence)))
		if r.Recurrence == model.RecurrenceMonthly {
			if !r.MonthOccurrence.Valid() {
				return nil, fmt.Errorf("%w: rule %d: monthly rule requires month occurrence", ErrInvalidRule, i)
			}
		} else {
			r.MonthOccurrence = ""
		}

		out = append(out, r)
	}

	return out, nil
}

func sameRule(a, b model.RecurrenceRule) bool {
	return a.DayOfWeek == b.DayOfWeek &&
		sameTime(a.StartTime, b.StartTime) &&
		sameTime(a.EndTime, b.EndTime) &&
		a.LocationID == b.LocationID &&
		a.Class() == b.Class() &&
		a.MonthOccurrence == b.MonthOccurrence
}

func sameTime(a, b *model.TimeOfDay) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
