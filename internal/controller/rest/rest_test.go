package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// stubs реализует все интерфейсы сервисов, err возвращается из каждого вызова
type stubs struct {
	err error

	generated   int
	genFrom     time.Time
	genTo       time.Time
	slotsFrom   time.Time
	slotsTo     time.Time
	schedule    *model.PractitionerSchedule
	override    model.DateOverride
	admitted    service.AdmitRequest
	rescheduled [3]string
	active      *bool
	saved       string
}

func (s *stubs) CreateTemplate(_ context.Context, in service.TemplateInput) (*model.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Template{ID: uuid.New(), PractitionerID: in.PractitionerID, SlotDurationMinutes: 15, Active: true, Rules: in.Rules}, nil
}

func (s *stubs) UpdateTemplate(_ context.Context, id uuid.UUID, in service.TemplateInput) (*model.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Template{ID: id, Rules: in.Rules}, nil
}

func (s *stubs) GetTemplate(_ context.Context, id uuid.UUID) (*model.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Template{ID: id, RuleCounters: map[string]int{"b": 2}}, nil
}

func (s *stubs) ListTemplates(context.Context, string) ([]*model.Template, error) {
	return nil, s.err
}

func (s *stubs) SetActive(_ context.Context, _ uuid.UUID, active bool) error {
	s.active = &active
	return s.err
}

func (s *stubs) DeleteTemplate(context.Context, uuid.UUID) error { return s.err }

func (s *stubs) Generate(_ context.Context, _ uuid.UUID, from, to time.Time) (int, error) {
	s.genFrom, s.genTo = from, to
	return s.generated, s.err
}

func (s *stubs) ListSlots(_ context.Context, _ string, from, to time.Time) ([]*model.Slot, error) {
	s.slotsFrom, s.slotsTo = from, to
	return nil, s.err
}

func (s *stubs) GetSchedule(context.Context, string) (*model.PractitionerSchedule, error) {
	return s.schedule, s.err
}

func (s *stubs) UpsertSchedule(_ context.Context, schedule *model.PractitionerSchedule) error {
	s.schedule = schedule
	return s.err
}

func (s *stubs) PutOverride(_ context.Context, _ string, o model.DateOverride) error {
	s.override = o
	return s.err
}

func (s *stubs) DeleteOverride(context.Context, string, string) error { return s.err }

func (s *stubs) AvailableTimes(context.Context, string, string, string) ([]service.TimePoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []service.TimePoint{{Time: "09:00", Status: service.TimeAvailable}, {Time: "09:15", Status: service.TimeWaitlistEligible}}, nil
}

func (s *stubs) AvailableDates(context.Context, string, int) ([]string, error) {
	return []string{"2025-12-01"}, s.err
}

func (s *stubs) Admit(_ context.Context, req service.AdmitRequest) (*model.Appointment, error) {
	s.admitted = req
	if s.err != nil {
		return nil, s.err
	}
	return &model.Appointment{BookingID: "BID-1", PractitionerID: req.PractitionerID, Status: model.AppointmentWaitlisted}, nil
}

func (s *stubs) WalkIn(_ context.Context, req service.AdmitRequest) (*model.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Appointment{BookingID: "BID-2", Status: model.AppointmentWalkIn}, nil
}

func (s *stubs) Cancel(_ context.Context, id string) (*model.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Appointment{BookingID: id, Status: model.AppointmentCancelled}, nil
}

func (s *stubs) Complete(_ context.Context, id string) (*model.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Appointment{BookingID: id, Status: model.AppointmentCompleted}, nil
}

func (s *stubs) Reschedule(_ context.Context, id, date, tod string) (*model.Appointment, error) {
	s.rescheduled = [3]string{id, date, tod}
	if s.err != nil {
		return nil, s.err
	}
	return &model.Appointment{BookingID: "BID-3", Date: date, Time: tod, Status: model.AppointmentConfirmed}, nil
}

func (s *stubs) ListByDate(context.Context, string) ([]*model.Appointment, error) {
	return nil, s.err
}

func (s *stubs) CountNonCancelled(context.Context, string, string) (int, error) {
	return 7, s.err
}

func (s *stubs) SavePractitioner(_ context.Context, p *model.Practitioner) error {
	s.saved = p.ID + ":" + p.Name
	return s.err
}

func (s *stubs) SaveLocation(_ context.Context, l *model.Location) error {
	s.saved = l.ID + ":" + l.Name
	return s.err
}

func newTestServer(s *stubs, health func(context.Context) error) *echo.Echo {
	h := NewHandler(Services{
		Templates:    s,
		Generator:    s,
		Schedules:    s,
		Availability: s,
		Bookings:     s,
		Directory:    s,
		Health:       health,
	}, ist, zap.NewNop())
	return NewServer(h, zap.NewNop())
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestServer(&stubs{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(newTestServer(&stubs{}, func(context.Context) error { return errors.New("db down") }), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGenerateSlots(t *testing.T) {
	s := &stubs{generated: 8}
	e := newTestServer(s, nil)
	id := uuid.New()

	rec := do(e, http.MethodPost, "/api/templates/"+id.String()+"/generate", `{"startDate":"2025-12-01","endDate":"2025-12-02"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp generateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.TemplateID)
	assert.Equal(t, 8, resp.SlotsCreated)
	assert.Equal(t, "Slots generated", resp.Message)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, ist), s.genFrom)
	assert.Equal(t, time.Date(2025, 12, 2, 0, 0, 0, 0, ist), s.genTo)

	s.generated = 0
	rec = do(e, http.MethodPost, "/api/templates/"+id.String()+"/generate", `{"startDate":"2025-12-01","endDate":"2025-12-02"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "No new slots")
}

func TestGenerateSlotsRejectsBadInput(t *testing.T) {
	e := newTestServer(&stubs{}, nil)
	id := uuid.New().String()

	cases := map[string]struct {
		target string
		body   string
	}{
		"bad id":       {"/api/templates/nope/generate", `{"startDate":"2025-12-01","endDate":"2025-12-02"}`},
		"bad date":     {"/api/templates/" + id + "/generate", `{"startDate":"01.12.2025","endDate":"2025-12-02"}`},
		"reversed":     {"/api/templates/" + id + "/generate", `{"startDate":"2025-12-05","endDate":"2025-12-02"}`},
		"too long":     {"/api/templates/" + id + "/generate", `{"startDate":"2025-12-01","endDate":"2026-01-01"}`},
		"invalid json": {"/api/templates/" + id + "/generate", `{"startDate":`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(e, http.MethodPost, tc.target, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// Ровно 30 дней допустимо
	rec := do(e, http.MethodPost, "/api/templates/"+id+"/generate", `{"startDate":"2025-12-01","endDate":"2025-12-31"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("template x: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", service.ErrInvalidRule), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: taken", service.ErrConflict), http.StatusConflict},
		{errors.Join(service.ErrStoreUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			e := newTestServer(&stubs{err: tc.err}, nil)
			rec := do(e, http.MethodPut, "/api/appointments/BID-1/cancel", "")
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestTemplateRoutes(t *testing.T) {
	s := &stubs{}
	e := newTestServer(s, nil)

	rec := do(e, http.MethodPost, "/api/templates", `{"practitionerId":"DOC1","rules":[{"dayOfWeek":"MONDAY","startTime":"09:00","endTime":"12:00","locationId":"LOC1"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl model.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
	assert.Equal(t, "DOC1", tmpl.PractitionerID)
	require.Len(t, tmpl.Rules, 1)
	assert.Equal(t, model.NewTimeOfDay(12, 0), *tmpl.Rules[0].EndTime)

	rec = do(e, http.MethodGet, "/api/templates?practitionerId=DOC1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	id := uuid.New().String()
	rec = do(e, http.MethodPatch, "/api/templates/"+id+"/active", `{"active":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, s.active)
	assert.False(t, *s.active)

	rec = do(e, http.MethodPatch, "/api/templates/"+id+"/active", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/templates/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"b":2`)

	rec = do(e, http.MethodDelete, "/api/templates/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListSlotsIncludesEndDate(t *testing.T) {
	s := &stubs{}
	e := newTestServer(s, nil)

	rec := do(e, http.MethodGet, "/api/slots?practitionerId=DOC1&from=2025-12-01&to=2025-12-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, ist), s.slotsFrom)
	assert.Equal(t, time.Date(2025, 12, 8, 0, 0, 0, 0, ist), s.slotsTo)

	rec = do(e, http.MethodGet, "/api/slots?practitionerId=DOC1&from=2025-12-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleRoutes(t *testing.T) {
	s := &stubs{}
	e := newTestServer(s, nil)

	rec := do(e, http.MethodPut, "/api/practitioners/DOC1/schedule", `{"practitionerId":"OTHER","locationId":"LOC1","startTime":"09:00","endTime":"13:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, s.schedule)
	assert.Equal(t, "DOC1", s.schedule.PractitionerID)
	assert.Equal(t, model.NewTimeOfDay(13, 0), s.schedule.EndTime)

	rec = do(e, http.MethodPut, "/api/practitioners/DOC1/overrides/2025-12-02", `{"startTime":"14:00","endTime":"16:00","slotDurationMinutes":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-12-02", s.override.Date)
	require.NotNil(t, s.override.SlotDurationMinutes)
	assert.Equal(t, 20, *s.override.SlotDurationMinutes)

	rec = do(e, http.MethodDelete, "/api/practitioners/DOC1/overrides/2025-12-02", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAvailabilityRoutes(t *testing.T) {
	e := newTestServer(&stubs{}, nil)

	rec := do(e, http.MethodGet, "/api/availability?practitionerId=DOC1&locationId=LOC1&date=2025-12-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"time":"09:00","status":"AVAILABLE"},{"time":"09:15","status":"WAITLIST_ELIGIBLE"}]`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/availability/dates?practitionerId=DOC1&days=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/availability/dates?practitionerId=DOC1&days=7", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["2025-12-01"]`, rec.Body.String())
}

func TestAppointmentRoutes(t *testing.T) {
	s := &stubs{}
	e := newTestServer(s, nil)

	rec := do(e, http.MethodPost, "/api/appointments", `{"doctorId":"DOC1","locationId":"LOC1","date":"2025-12-01","time":"09:30","patientId":"P1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "DOC1", s.admitted.PractitionerID)
	assert.Contains(t, rec.Body.String(), `"status":"WAITLISTED"`)

	rec = do(e, http.MethodPost, "/api/appointments/walk-in", `{"doctorId":"DOC1","locationId":"LOC1","patientId":"P1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"WALK_IN"`)

	rec = do(e, http.MethodPut, "/api/appointments/BID-1/reschedule", `{"date":"2025-12-02","time":"10:00"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [3]string{"BID-1", "2025-12-02", "10:00"}, s.rescheduled)

	rec = do(e, http.MethodPut, "/api/appointments/BID-1/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"COMPLETED"`)

	rec = do(e, http.MethodGet, "/api/appointments?date=2025-12-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/appointments/count?from=2025-12-01&to=2025-12-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"from":"2025-12-01","to":"2025-12-31","count":7}`, rec.Body.String())
}

func TestRescheduleConflict(t *testing.T) {
	e := newTestServer(&stubs{err: fmt.Errorf("%w: time is taken", service.ErrConflict)}, nil)

	rec := do(e, http.MethodPut, "/api/appointments/BID-1/reschedule", `{"date":"2025-12-02","time":"10:00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "time is taken")
}

func TestDirectoryRoutes(t *testing.T) {
	s := &stubs{}
	e := newTestServer(s, nil)

	rec := do(e, http.MethodPut, "/api/directory/practitioners/DOC1", `{"name":"Dr. Rao","specialization":"ENT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DOC1:Dr. Rao", s.saved)

	rec = do(e, http.MethodPut, "/api/directory/locations/LOC1", `{"name":"Main clinic"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LOC1:Main clinic", s.saved)
}
