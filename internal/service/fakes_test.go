package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func testLogger() *zap.Logger { return zap.NewNop() }

func tod(s string) *model.TimeOfDay {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func day(s string) time.Time {
	d, err := model.ParseDate(s, ist)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeTemplates in-memory TemplateStore
type fakeTemplates struct {
	mu   sync.Mutex
	byID map[uuid.UUID]model.Template
}

func newFakeTemplates(templates ...*model.Template) *fakeTemplates {
	f := &fakeTemplates{byID: make(map[uuid.UUID]model.Template)}
	for _, t := range templates {
		f.byID[t.ID] = cloneTemplate(t)
	}
	return f
}

func cloneTemplate(t *model.Template) model.Template {
	c := *t
	c.Rules = append([]model.RecurrenceRule(nil), t.Rules...)
	return c
}

func (f *fakeTemplates) Create(_ context.Context, t *model.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[t.ID] = cloneTemplate(t)
	return nil
}

func (f *fakeTemplates) GetByID(_ context.Context, id uuid.UUID) (*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	c := cloneTemplate(&t)
	return &c, nil
}

func (f *fakeTemplates) List(_ context.Context, practitionerID string) ([]*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Template
	for _, t := range f.byID {
		if practitionerID == "" || t.PractitionerID == practitionerID {
			c := cloneTemplate(&t)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeTemplates) ListActive(_ context.Context) ([]*model.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Template
	for _, t := range f.byID {
		if t.Active {
			c := cloneTemplate(&t)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Update(_ context.Context, t *model.Template) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[t.ID]; !ok {
		return false, nil
	}
	f.byID[t.ID] = cloneTemplate(t)
	return true, nil
}

func (f *fakeTemplates) SetActive(_ context.Context, id uuid.UUID, active bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	t.Active = active
	f.byID[id] = t
	return true, nil
}

func (f *fakeTemplates) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

type ruleKey struct {
	template uuid.UUID
	rule     string
}

type decisionKey struct {
	ruleKey
	date string
}

// fakeRuleState повторяет семантику template_rule_state + rule_occurrences
type fakeRuleState struct {
	mu        sync.Mutex
	counters  map[ruleKey]int
	months    map[ruleKey]string
	previous  map[decisionKey]int
	claimed   map[decisionKey]bool
	failAfter int // сколько вызовов пройдёт до ошибки, 0 без ошибок
	calls     int
}

func newFakeRuleState() *fakeRuleState {
	return &fakeRuleState{
		counters: make(map[ruleKey]int),
		months:   make(map[ruleKey]string),
		previous: make(map[decisionKey]int),
		claimed:  make(map[decisionKey]bool),
	}
}

func (f *fakeRuleState) fail() error {
	f.calls++
	if f.failAfter > 0 && f.calls > f.failAfter {
		return fmt.Errorf("rule state: %w", ErrStoreUnavailable)
	}
	return nil
}

func (f *fakeRuleState) AdvanceCounter(_ context.Context, templateID uuid.UUID, ruleID, localDate string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return 0, err
	}
	key := decisionKey{ruleKey{templateID, ruleID}, localDate}
	if prev, ok := f.previous[key]; ok {
		return prev, nil
	}
	prev := f.counters[key.ruleKey]
	f.counters[key.ruleKey] = prev + 1
	f.previous[key] = prev
	return prev, nil
}

func (f *fakeRuleState) ClaimMonth(_ context.Context, templateID uuid.UUID, ruleID, localDate, month string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return false, err
	}
	key := decisionKey{ruleKey{templateID, ruleID}, localDate}
	if c, ok := f.claimed[key]; ok {
		return c, nil
	}
	ok := f.months[key.ruleKey] != month
	if ok {
		f.months[key.ruleKey] = month
	}
	f.claimed[key] = ok
	return ok, nil
}

func (f *fakeRuleState) States(_ context.Context, templateID uuid.UUID) ([]model.RuleState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byRule := make(map[string]*model.RuleState)
	for k, v := range f.counters {
		if k.template == templateID {
			byRule[k.rule] = &model.RuleState{RuleID: k.rule, Counter: v}
		}
	}
	for k, v := range f.months {
		if k.template != templateID {
			continue
		}
		st, ok := byRule[k.rule]
		if !ok {
			st = &model.RuleState{RuleID: k.rule}
			byRule[k.rule] = st
		}
		m := v
		st.LastGeneratedMonth = &m
	}
	out := make([]model.RuleState, 0, len(byRule))
	for _, st := range byRule {
		out = append(out, *st)
	}
	return out, nil
}

func (f *fakeRuleState) counter(templateID uuid.UUID, ruleID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[ruleKey{templateID, ruleID}]
}

// fakeSlots in-memory SlotStore с уникальностью по id и без пересечений интервалов одного врача
type fakeSlots struct {
	mu          sync.Mutex
	byID        map[string]*model.Slot
	failInserts int   // сколько первых вставок вернут failErr
	failErr     error // по умолчанию ErrStoreUnavailable
	inserts     int
}

func newFakeSlots() *fakeSlots {
	return &fakeSlots{byID: make(map[string]*model.Slot)}
}

func (f *fakeSlots) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := f.byID[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeSlots) InsertBatch(_ context.Context, slots []*model.Slot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.failInserts > 0 {
		f.failInserts--
		if f.failErr != nil {
			return 0, f.failErr
		}
		return 0, fmt.Errorf("insert slots: %w", ErrStoreUnavailable)
	}
	n := 0
	for _, s := range slots {
		if _, ok := f.byID[s.ID]; ok || f.overlapsLocked(s) {
			continue
		}
		c := *s
		f.byID[s.ID] = &c
		n++
	}
	return n, nil
}

func (f *fakeSlots) overlapsLocked(s *model.Slot) bool {
	for _, existing := range f.byID {
		if existing.PractitionerID == s.PractitionerID && existing.Overlaps(s) {
			return true
		}
	}
	return false
}

func (f *fakeSlots) ListByPractitioner(_ context.Context, practitionerID string, from, to time.Time) ([]*model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Slot
	for _, s := range f.byID {
		if s.PractitionerID == practitionerID && !s.StartAt.Before(from) && s.StartAt.Before(to) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (f *fakeSlots) RuleHasSlots(_ context.Context, templateID uuid.UUID, ruleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.TemplateID == templateID && s.RuleID == ruleID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSlots) all() []*model.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Slot, 0, len(f.byID))
	for _, s := range f.byID {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}

// datesOf локальные даты слотов правила
func (f *fakeSlots) datesOf(ruleID string) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, s := range f.all() {
		if s.RuleID == ruleID && !seen[s.LocalDate] {
			seen[s.LocalDate] = true
			dates = append(dates, s.LocalDate)
		}
	}
	return dates
}

// fakeAppointments in-memory AppointmentStore с частичным уникальным индексом
// (practitioner, date, time) для CONFIRMED и уникальным booking_id
type fakeAppointments struct {
	mu    sync.Mutex
	items []*model.Appointment
	// hideFromRecheck заставляет HasActive вернуть false, имитируя гонку
	hideFromRecheck bool
}

func (f *fakeAppointments) HasActive(_ context.Context, practitionerID, locationID, date, timeOfDay string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideFromRecheck {
		return false, nil
	}
	for _, a := range f.items {
		if a.PractitionerID == practitionerID && a.LocationID == locationID && a.Date == date && a.Time == timeOfDay && a.Status.Occupies() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAppointments) ListActive(_ context.Context, practitionerID, locationID, date string) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Appointment
	for _, a := range f.items {
		if a.PractitionerID == practitionerID && a.LocationID == locationID && a.Date == date && a.Status.Occupies() {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeAppointments) duplicateID(id string) bool {
	for _, a := range f.items {
		if a.BookingID == id {
			return true
		}
	}
	return false
}

func (f *fakeAppointments) InsertConfirmed(_ context.Context, appt *model.Appointment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.PractitionerID == appt.PractitionerID && a.Date == appt.Date && a.Time == appt.Time && a.Status == model.AppointmentConfirmed {
			return false, nil
		}
	}
	if f.duplicateID(appt.BookingID) {
		return false, fmt.Errorf("insert appointment: %w", base.ErrDuplicate)
	}
	c := *appt
	f.items = append(f.items, &c)
	return true, nil
}

func (f *fakeAppointments) Insert(_ context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.duplicateID(appt.BookingID) {
		return fmt.Errorf("insert appointment: %w", base.ErrDuplicate)
	}
	c := *appt
	f.items = append(f.items, &c)
	return nil
}

func (f *fakeAppointments) GetByBookingID(_ context.Context, bookingID string) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.BookingID == bookingID {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeAppointments) UpdateStatus(_ context.Context, bookingID string, to model.AppointmentStatus, from ...model.AppointmentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.BookingID != bookingID {
			continue
		}
		for _, st := range from {
			if a.Status == st {
				a.Status = to
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (f *fakeAppointments) ListByDate(_ context.Context, date string) ([]*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Appointment
	for _, a := range f.items {
		if a.Date == date {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeAppointments) CountNonCancelled(_ context.Context, from, to string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.items {
		if a.Date >= from && a.Date <= to && a.Status.Occupies() {
			n++
		}
	}
	return n, nil
}

func (f *fakeAppointments) byStatus(status model.AppointmentStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.items {
		if a.Status == status {
			n++
		}
	}
	return n
}

type fakeSchedules struct {
	mu        sync.Mutex
	schedules map[string]*model.PractitionerSchedule
}

func newFakeSchedules(schedules ...*model.PractitionerSchedule) *fakeSchedules {
	f := &fakeSchedules{schedules: make(map[string]*model.PractitionerSchedule)}
	for _, s := range schedules {
		f.schedules[s.PractitionerID] = s
	}
	return f
}

func (f *fakeSchedules) Get(_ context.Context, practitionerID string) (*model.PractitionerSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[practitionerID]
	if !ok {
		return nil, nil
	}
	c := *s
	c.Overrides = append([]model.DateOverride(nil), s.Overrides...)
	return &c, nil
}

func (f *fakeSchedules) Upsert(_ context.Context, s *model.PractitionerSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *s
	if old, ok := f.schedules[s.PractitionerID]; ok {
		c.Overrides = old.Overrides
	}
	f.schedules[s.PractitionerID] = &c
	return nil
}

func (f *fakeSchedules) PutOverride(_ context.Context, practitionerID string, o model.DateOverride) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[practitionerID]
	if !ok {
		return false, nil
	}
	for i := range s.Overrides {
		if s.Overrides[i].Date == o.Date {
			s.Overrides[i] = o
			return true, nil
		}
	}
	s.Overrides = append(s.Overrides, o)
	return true, nil
}

func (f *fakeSchedules) DeleteOverride(_ context.Context, practitionerID, date string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[practitionerID]
	if !ok {
		return false, nil
	}
	for i := range s.Overrides {
		if s.Overrides[i].Date == date {
			s.Overrides = append(s.Overrides[:i], s.Overrides[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// recordingNotifier запоминает события и может проверять состояние хранилища в момент доставки
type recordingNotifier struct {
	mu      sync.Mutex
	events  []model.BookingEvent
	err     error
	onEvent func(model.BookingEvent)
}

func (n *recordingNotifier) Notify(_ context.Context, e model.BookingEvent) error {
	if n.onEvent != nil {
		n.onEvent(e)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) all() []model.BookingEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.BookingEvent(nil), n.events...)
}
