package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultGenerateParallelism = 4
	defaultRetryAttempts       = 3
	defaultRetryBase           = 100 * time.Millisecond
	insertBatchSize            = 500
)

// GeneratorConfig настройки генератора
type GeneratorConfig struct {
	Parallelism   int
	RetryAttempts int
	RetryBase     time.Duration
}

// SlotGenerator превращает правила шаблона в слоты на диапазон дат
type SlotGenerator struct {
	templates     TemplateStore
	ruleState     RuleStateStore
	slots         SlotStore
	clock         Clock
	parallelism   int
	retryAttempts int
	retryBase     time.Duration
	logger        *zap.Logger
}

func NewSlotGenerator(
	templates TemplateStore,
	ruleState RuleStateStore,
	slots SlotStore,
	clock Clock,
	cfg GeneratorConfig,
	logger *zap.Logger,
) *SlotGenerator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultGenerateParallelism
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &SlotGenerator{
		templates:     templates,
		ruleState:     ruleState,
		slots:         slots,
		clock:         clock,
		parallelism:   cfg.Parallelism,
		retryAttempts: cfg.RetryAttempts,
		retryBase:     cfg.RetryBase,
		logger:        logger,
	}
}

// Generate создаёт слоты шаблона на каждую дату из [from, to] включительно.
// Возвращает число реально вставленных слотов.
func (g *SlotGenerator) Generate(ctx context.Context, templateID uuid.UUID, from, to time.Time) (int, error) {
	loc := g.clock.Location()
	from, to = model.DayStart(from, loc), model.DayStart(to, loc)
	if to.Before(from) {
		return 0, fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidInput, to.Format(model.DateLayout), from.Format(model.DateLayout))
	}

	tmpl, err := g.templates.GetByID(ctx, templateID)
	if err != nil {
		return 0, fmt.Errorf("get template: %w", err)
	}
	if tmpl == nil {
		return 0, fmt.Errorf("template %s: %w", templateID, ErrNotFound)
	}

	if !tmpl.Active {
		g.logger.Info("Template is inactive, nothing to generate",
			zap.String("template_id", templateID.String()))
		return 0, nil
	}
	if tmpl.SlotDurationMinutes <= 0 {
		return 0, fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidRule, tmpl.SlotDurationMinutes)
	}

	rangeMeta := map[string]string{
		"generatedForRangeStart": from.Format(model.DateLayout),
		"generatedForRangeEnd":   to.Format(model.DateLayout),
	}

	createdAt := g.clock.Now()

	var staged []*model.Slot
	var planErr error
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		daySlots, err := g.planDay(ctx, tmpl, day, rangeMeta, createdAt)
		staged = append(staged, daySlots...)
		if err != nil {
			// Решения по уже обработанным датам зафиксированы, их слоты сохраняем
			planErr = err
			break
		}
	}

	inserted, err := g.persist(ctx, staged)
	if err != nil {
		g.logger.Error("Failed to persist generated slots",
			zap.String("template_id", templateID.String()),
			zap.Int("staged", len(staged)),
			zap.Int("inserted", inserted),
			zap.Error(err))
		return inserted, fmt.Errorf("persist slots: %w", err)
	}
	if planErr != nil {
		return inserted, planErr
	}

	g.logger.Info("Slots generated",
		zap.String("template_id", templateID.String()),
		zap.String("practitioner_id", tmpl.PractitionerID),
		zap.String("from", from.Format(model.DateLayout)),
		zap.String("to", to.Format(model.DateLayout)),
		zap.Int("staged", len(staged)),
		zap.Int("inserted", inserted))

	return inserted, nil
}

// planDay разбирает правила одной даты в порядке приоритета
func (g *SlotGenerator) planDay(
	ctx context.Context,
	tmpl *model.Template,
	day time.Time,
	rangeMeta map[string]string,
	createdAt time.Time,
) ([]*model.Slot, error) {
	rules := rulesForDay(tmpl.Rules, day)
	if len(rules) == 0 {
		return nil, nil
	}

	dateKey := day.Format(model.DateLayout)
	var occupied occupancy
	var staged []*model.Slot

	for _, rule := range rules {
		if !rule.HasWindow() {
			g.logger.Warn("Skipping malformed rule",
				zap.String("template_id", tmpl.ID.String()),
				zap.String("rule_id", rule.RuleID),
				zap.String("date", dateKey))
			continue
		}

		window := interval{start: *rule.StartTime, end: *rule.EndTime}
		class := rule.Class()

		if class == model.RecurrenceMonthly && rule.MonthOccurrence != "" && !rule.MonthOccurrence.Matches(day) {
			continue
		}

		if occupied.conflicts(window) {
			g.logger.Debug("Rule conflicts with higher priority rule, skipped",
				zap.String("rule_id", rule.RuleID),
				zap.String("date", dateKey))
			continue
		}

		included, err := g.include(ctx, tmpl.ID, rule, day)
		if err != nil {
			return staged, fmt.Errorf("decide rule %s on %s: %w", rule.RuleID, dateKey, err)
		}
		if !included {
			continue
		}

		chunks := sliceWindow(window.start, window.end, tmpl.SlotDurationMinutes)
		candidates := make([]*model.Slot, 0, len(chunks))
		ids := make([]string, 0, len(chunks))
		for _, c := range chunks {
			slot := newSlot(tmpl, rule, day, c, rangeMeta, createdAt)
			candidates = append(candidates, slot)
			ids = append(ids, slot.ID)
		}

		existing, err := g.slots.ExistingIDs(ctx, ids)
		if err != nil {
			return staged, fmt.Errorf("check existing slots: %w", err)
		}
		for _, s := range candidates {
			if !existing[s.ID] {
				staged = append(staged, s)
			}
		}

		occupied.reserve(chunks...)
	}

	return staged, nil
}

// include решает, попадает ли правило в эту дату. Состояние меняется только здесь.
func (g *SlotGenerator) include(ctx context.Context, templateID uuid.UUID, rule model.RecurrenceRule, day time.Time) (bool, error) {
	dateKey := day.Format(model.DateLayout)

	switch rule.Class() {
	case model.RecurrenceBiweekly:
		previous, err := g.ruleState.AdvanceCounter(ctx, templateID, rule.RuleID, dateKey)
		if err != nil {
			return false, fmt.Errorf("advance counter: %w", err)
		}
		return previous%2 == 0, nil
	case model.RecurrenceMonthly:
		claimed, err := g.ruleState.ClaimMonth(ctx, templateID, rule.RuleID, dateKey, day.Format(model.MonthLayout))
		if err != nil {
			return false, fmt.Errorf("claim month: %w", err)
		}
		return claimed, nil
	default:
		return true, nil
	}
}

// persist сохраняет слоты пачками. Временные сбои хранилища повторяются на уровне пачки:
// повторная вставка безопасна, дубликаты по id игнорируются.
func (g *SlotGenerator) persist(ctx context.Context, staged []*model.Slot) (int, error) {
	total := 0
	for start := 0; start < len(staged); start += insertBatchSize {
		end := min(start+insertBatchSize, len(staged))
		batch := staged[start:end]

		var inserted int
		backoff := retry.WithMaxRetries(uint64(g.retryAttempts-1), retry.NewExponential(g.retryBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			n, err := g.slots.InsertBatch(ctx, batch)
			if err != nil {
				if errors.Is(err, ErrStoreUnavailable) {
					g.logger.Warn("Slot batch insert failed, retrying", zap.Int("size", len(batch)), zap.Error(err))
					return retry.RetryableError(err)
				}
				return err
			}
			inserted = n
			return nil
		})
		if err != nil {
			return total, err
		}
		total += inserted
	}
	return total, nil
}

// GenerateAllActive генерирует слоты для всех активных шаблонов с ограниченным параллелизмом.
// Ошибки отдельных шаблонов собираются и возвращаются вместе.
func (g *SlotGenerator) GenerateAllActive(ctx context.Context, from, to time.Time) (int, error) {
	templates, err := g.templates.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	var (
		mu    sync.Mutex
		total int
		errs  []error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)
	for _, tmpl := range templates {
		eg.Go(func() error {
			n, err := g.Generate(egCtx, tmpl.ID, from, to)
			mu.Lock()
			defer mu.Unlock()
			total += n
			if err != nil {
				g.logger.Error("Failed to generate slots for template",
					zap.String("template_id", tmpl.ID.String()),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("template %s: %w", tmpl.ID, err))
			}
			return nil
		})
	}
	_ = eg.Wait()

	g.logger.Info("Generation for active templates finished",
		zap.Int("templates", len(templates)),
		zap.Int("inserted", total),
		zap.Int("failed", len(errs)))

	return total, errors.Join(errs...)
}

// rulesForDay выбирает правила по дню недели и сортирует по приоритету.
// Сортировка стабильная: при равном приоритете сохраняется порядок в шаблоне.
func rulesForDay(rules []model.RecurrenceRule, day time.Time) []model.RecurrenceRule {
	var dayRules []model.RecurrenceRule
	for _, r := range rules {
		if r.OccursOn(day) {
			dayRules = append(dayRules, r)
		}
	}
	sort.SliceStable(dayRules, func(i, j int) bool {
		return dayRules[i].Class().Priority() > dayRules[j].Class().Priority()
	})
	return dayRules
}

func newSlot(tmpl *model.Template, rule model.RecurrenceRule, day time.Time, c interval, rangeMeta map[string]string, createdAt time.Time) *model.Slot {
	start := c.start.On(day)
	end := c.end.On(day)

	meta := map[string]string{
		"createdBy":  "template-gen",
		"localStart": day.Format(model.DateLayout) + "T" + c.start.String(),
	}
	for k, v := range rangeMeta {
		meta[k] = v
	}

	return &model.Slot{
		ID:             model.SlotID(tmpl.ID, rule.RuleID, start),
		TemplateID:     tmpl.ID,
		RuleID:         rule.RuleID,
		PractitionerID: tmpl.PractitionerID,
		LocationID:     rule.LocationID,
		StartAt:        start.UTC(),
		EndAt:          end.UTC(),
		LocalDate:      day.Format(model.DateLayout),
		Available:      true,
		Recurrence:     string(rule.Class()),
		Metadata:       meta,
		CreatedAt:      createdAt,
	}
}

// ListSlots возвращает слоты врача, начинающиеся в [from, to)
func (g *SlotGenerator) ListSlots(ctx context.Context, practitionerID string, from, to time.Time) ([]*model.Slot, error) {
	if practitionerID == "" {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrInvalidInput)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty time range", ErrInvalidInput)
	}
	slots, err := g.slots.ListByPractitioner(ctx, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// FindOverlap ищет первую пару пересекающихся слотов одного врача
func FindOverlap(slots []*model.Slot) (*model.Slot, *model.Slot, bool) {
	sorted := make([]*model.Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartAt.Before(sorted[j].StartAt) })

	byPractitioner := make(map[string]*model.Slot)
	for _, s := range sorted {
		if prev, ok := byPractitioner[s.PractitionerID]; ok && prev.Overlaps(s) {
			return prev, s, true
		}
		if prev, ok := byPractitioner[s.PractitionerID]; !ok || s.EndAt.After(prev.EndAt) {
			byPractitioner[s.PractitionerID] = s
		}
	}
	return nil, nil, false
}
