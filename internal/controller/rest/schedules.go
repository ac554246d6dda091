package rest

import (
	"net/http"
	"strconv"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/labstack/echo/v4"
)

type overrideRequest struct {
	StartTime           model.TimeOfDay `json:"startTime"`
	EndTime             model.TimeOfDay `json:"endTime"`
	SlotDurationMinutes *int            `json:"slotDurationMinutes,omitempty"`
}

func (h *Handler) GetSchedule(c echo.Context) error {
	schedule, err := h.svc.Schedules.GetSchedule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, schedule)
}

// PutSchedule id врача берётся из пути, окна на даты меняются отдельными запросами
func (h *Handler) PutSchedule(c echo.Context) error {
	var schedule model.PractitionerSchedule
	if err := c.Bind(&schedule); err != nil {
		return badRequest(err.Error())
	}
	schedule.PractitionerID = c.Param("id")
	schedule.Overrides = nil

	if err := h.svc.Schedules.UpsertSchedule(c.Request().Context(), &schedule); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, schedule)
}

func (h *Handler) PutOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	o := model.DateOverride{
		Date:                c.Param("date"),
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}
	if err := h.svc.Schedules.PutOverride(c.Request().Context(), c.Param("id"), o); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOverride(c echo.Context) error {
	if err := h.svc.Schedules.DeleteOverride(c.Request().Context(), c.Param("id"), c.Param("date")); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AvailableTimes точки записи на дату со статусом доступности
func (h *Handler) AvailableTimes(c echo.Context) error {
	points, err := h.svc.Availability.AvailableTimes(c.Request().Context(),
		c.QueryParam("practitionerId"),
		c.QueryParam("locationId"),
		c.QueryParam("date"),
	)
	if err != nil {
		return h.fail(err)
	}
	if points == nil {
		points = []service.TimePoint{}
	}
	return c.JSON(http.StatusOK, points)
}

func (h *Handler) AvailableDates(c echo.Context) error {
	days := 0
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest("days must be an integer")
		}
		days = n
	}

	dates, err := h.svc.Availability.AvailableDates(c.Request().Context(), c.QueryParam("practitionerId"), days)
	if err != nil {
		return h.fail(err)
	}
	if dates == nil {
		dates = []string{}
	}
	return c.JSON(http.StatusOK, dates)
}

func (h *Handler) PutPractitioner(c echo.Context) error {
	var p model.Practitioner
	if err := c.Bind(&p); err != nil {
		return badRequest(err.Error())
	}
	p.ID = c.Param("id")

	if err := h.svc.Directory.SavePractitioner(c.Request().Context(), &p); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PutLocation(c echo.Context) error {
	var l model.Location
	if err := c.Bind(&l); err != nil {
		return badRequest(err.Error())
	}
	l.ID = c.Param("id")

	if err := h.svc.Directory.SaveLocation(c.Request().Context(), &l); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, l)
}
