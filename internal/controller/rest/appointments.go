package rest

import (
	"net/http"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/labstack/echo/v4"
)

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type countResponse struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Admit записывает пациента. Занятое время даёт WAITLISTED, а не ошибку.
func (h *Handler) Admit(c echo.Context) error {
	var req service.AdmitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	appt, err := h.svc.Bookings.Admit(c.Request().Context(), req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) WalkIn(c echo.Context) error {
	var req service.AdmitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	appt, err := h.svc.Bookings.WalkIn(c.Request().Context(), req)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	appt, err := h.svc.Bookings.Cancel(c.Request().Context(), c.Param("bookingId"))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) CompleteAppointment(c echo.Context) error {
	appt, err := h.svc.Bookings.Complete(c.Request().Context(), c.Param("bookingId"))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	appt, err := h.svc.Bookings.Reschedule(c.Request().Context(), c.Param("bookingId"), req.Date, req.Time)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	list, err := h.svc.Bookings.ListByDate(c.Request().Context(), c.QueryParam("date"))
	if err != nil {
		return h.fail(err)
	}
	if list == nil {
		list = []*model.Appointment{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) CountAppointments(c echo.Context) error {
	from, to := c.QueryParam("from"), c.QueryParam("to")

	count, err := h.svc.Bookings.CountNonCancelled(c.Request().Context(), from, to)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, countResponse{From: from, To: to, Count: count})
}
