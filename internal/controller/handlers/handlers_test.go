package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminID = 42

type chatRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (r *chatRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseMultipartForm(1 << 20)
	r.mu.Lock()
	r.texts = append(r.texts, req.FormValue("text"))
	r.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":1,"type":"private"}}}`))
}

func (r *chatRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

type fakeGenerator struct {
	calledAll bool
	id        uuid.UUID
	from, to  time.Time
	n         int
	err       error
}

func (g *fakeGenerator) Generate(_ context.Context, id uuid.UUID, from, to time.Time) (int, error) {
	g.id, g.from, g.to = id, from, to
	return g.n, g.err
}

func (g *fakeGenerator) GenerateAllActive(_ context.Context, from, to time.Time) (int, error) {
	g.calledAll, g.from, g.to = true, from, to
	return g.n, g.err
}

type fakeAvailability struct {
	date   string
	points []service.TimePoint
}

func (a *fakeAvailability) AvailableTimes(_ context.Context, _, _, date string) ([]service.TimePoint, error) {
	a.date = date
	return a.points, nil
}

type fakeAppointments struct {
	list []*model.Appointment
	err  error
}

func (a *fakeAppointments) ListByDate(context.Context, string) ([]*model.Appointment, error) {
	return a.list, a.err
}

type fixture struct {
	h     *Handlers
	b     *bot.Bot
	chat  *chatRecorder
	gen   *fakeGenerator
	avail *fakeAvailability
	appts *fakeAppointments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	chat := &chatRecorder{}
	srv := httptest.NewServer(chat)
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)

	ist := time.FixedZone("IST", 5*3600+30*60)
	f := &fixture{b: b, chat: chat, gen: &fakeGenerator{}, avail: &fakeAvailability{}, appts: &fakeAppointments{}}
	clock := service.NewFixedClock(time.Date(2025, 12, 1, 9, 0, 0, 0, ist))
	f.h = NewHandlers(f.gen, f.avail, f.appts, clock, []int64{adminID}, zap.NewNop())
	return f
}

func message(from int64, text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		From: &models.User{ID: from},
		Chat: models.Chat{ID: from},
	}}
}

func TestGenerateRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.h.HandleGenerate(context.Background(), f.b, message(7, "/generate all 2025-12-01"))

	assert.Contains(t, f.chat.last(), "только администраторам")
	assert.False(t, f.gen.calledAll)
}

func TestGenerateForTemplate(t *testing.T) {
	f := newFixture(t)
	f.gen.n = 8
	id := uuid.New()

	f.h.HandleGenerate(context.Background(), f.b, message(adminID, "/generate "+id.String()+" 2025-12-01 2025-12-07"))

	assert.Equal(t, id, f.gen.id)
	assert.Equal(t, "2025-12-07", f.gen.to.Format(model.DateLayout))
	assert.Contains(t, f.chat.last(), "Создано слотов: 8")
}

func TestGenerateAllDefaultsEndToStart(t *testing.T) {
	f := newFixture(t)
	f.h.HandleGenerate(context.Background(), f.b, message(adminID, "/generate ALL 2025-12-01"))

	assert.True(t, f.gen.calledAll)
	assert.Equal(t, f.gen.from, f.gen.to)
}

func TestGenerateReportsFailures(t *testing.T) {
	f := newFixture(t)

	f.h.HandleGenerate(context.Background(), f.b, message(adminID, "/generate nope 2025-12-01"))
	assert.Contains(t, f.chat.last(), "Неверный ID")

	f.h.HandleGenerate(context.Background(), f.b, message(adminID, "/generate all 01.12.2025"))
	assert.Contains(t, f.chat.last(), "Неверная дата начала")

	f.gen.n, f.gen.err = 3, errors.Join(service.ErrStoreUnavailable, errors.New("dial"))
	f.h.HandleGenerate(context.Background(), f.b, message(adminID, "/generate all 2025-12-01"))
	assert.Contains(t, f.chat.last(), "временно недоступно")
	assert.Contains(t, f.chat.last(), "Создано до ошибки: 3")
}

func TestFreeUsesTodayByDefault(t *testing.T) {
	f := newFixture(t)
	f.avail.points = []service.TimePoint{
		{Time: "10:00", Status: service.TimeAvailable},
		{Time: "10:15", Status: service.TimeWaitlistEligible},
	}

	f.h.HandleFree(context.Background(), f.b, message(adminID, "/free DOC1 LOC1"))

	assert.Equal(t, "2025-12-01", f.avail.date)
	assert.Contains(t, f.chat.last(), "🟢 10:00")
	assert.Contains(t, f.chat.last(), "⏳ 10:15 (лист ожидания)")
}

func TestDayListsAppointments(t *testing.T) {
	f := newFixture(t)

	f.h.HandleDay(context.Background(), f.b, message(adminID, "/day"))
	assert.Contains(t, f.chat.last(), "записей нет")

	f.appts.list = []*model.Appointment{
		{BookingID: "BID-1", PractitionerID: "DOC1", PatientID: "P1", Time: "09:00", Status: model.AppointmentConfirmed},
		{BookingID: "BID-2", PractitionerID: "DOC1", Phone: "+91000", Time: "09:00", Status: model.AppointmentWaitlisted},
	}
	f.h.HandleDay(context.Background(), f.b, message(adminID, "/day 2025-12-02"))
	assert.Contains(t, f.chat.last(), "Записи на 2025-12-02 (2)")
	assert.Contains(t, f.chat.last(), "⏳ 09:00 BID-2 · DOC1 · +91000")
}
