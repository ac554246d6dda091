package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/google/uuid"
)

// Интерфейсы хранилищ, от которых зависят сервисы.
// Методы Get* возвращают (nil, nil), если запись не найдена.

type TemplateStore interface {
	Create(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Template, error)
	List(ctx context.Context, practitionerID string) ([]*model.Template, error)
	ListActive(ctx context.Context) ([]*model.Template, error)
	Update(ctx context.Context, t *model.Template) (bool, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// RuleStateStore счётчики и отметки месяца по ключу (templateID, ruleID).
// Каждый вызов атомарен. Решение по одной дате запоминается: повторный вызов
// для уже обработанной даты возвращает прежний результат без изменения состояния.
type RuleStateStore interface {
	// AdvanceCounter увеличивает счётчик и возвращает значение до увеличения
	AdvanceCounter(ctx context.Context, templateID uuid.UUID, ruleID, localDate string) (int, error)
	// ClaimMonth ставит отметку month, если она ещё не равна month
	ClaimMonth(ctx context.Context, templateID uuid.UUID, ruleID, localDate, month string) (bool, error)
	States(ctx context.Context, templateID uuid.UUID) ([]model.RuleState, error)
}

type SlotStore interface {
	// ExistingIDs возвращает подмножество ids, уже сохранённых
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	// InsertBatch вставляет слоты, дубликаты пропускаются, возвращает число вставленных
	InsertBatch(ctx context.Context, slots []*model.Slot) (int, error)
	ListByPractitioner(ctx context.Context, practitionerID string, from, to time.Time) ([]*model.Slot, error)
	RuleHasSlots(ctx context.Context, templateID uuid.UUID, ruleID string) (bool, error)
}

type AppointmentStore interface {
	HasActive(ctx context.Context, practitionerID, locationID, date, timeOfDay string) (bool, error)
	ListActive(ctx context.Context, practitionerID, locationID, date string) ([]*model.Appointment, error)
	// InsertConfirmed вставляет подтверждённую запись, если время ещё не закреплено
	// за другой подтверждённой записью. false означает, что место занято.
	InsertConfirmed(ctx context.Context, a *model.Appointment) (bool, error)
	Insert(ctx context.Context, a *model.Appointment) error
	GetByBookingID(ctx context.Context, bookingID string) (*model.Appointment, error)
	// UpdateStatus меняет статус, если текущий статус входит в from
	UpdateStatus(ctx context.Context, bookingID string, to model.AppointmentStatus, from ...model.AppointmentStatus) (bool, error)
	ListByDate(ctx context.Context, date string) ([]*model.Appointment, error)
	CountNonCancelled(ctx context.Context, from, to string) (int, error)
}

type ScheduleStore interface {
	Get(ctx context.Context, practitionerID string) (*model.PractitionerSchedule, error)
	Upsert(ctx context.Context, s *model.PractitionerSchedule) error
	PutOverride(ctx context.Context, practitionerID string, o model.DateOverride) (bool, error)
	DeleteOverride(ctx context.Context, practitionerID, date string) (bool, error)
}

type DirectoryStore interface {
	GetPractitioner(ctx context.Context, id string) (*model.Practitioner, error)
	GetLocation(ctx context.Context, id string) (*model.Location, error)
	UpsertPractitioner(ctx context.Context, p *model.Practitioner) error
	UpsertLocation(ctx context.Context, l *model.Location) error
}

// Notifier внешний получатель событий о записях
type Notifier interface {
	Notify(ctx context.Context, event model.BookingEvent) error
}
