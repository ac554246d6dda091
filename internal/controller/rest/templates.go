package rest

import (
	"fmt"
	"net/http"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/Freeeeeet/clinic_scheduler/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Не больше 30 дней после даты начала за один запрос генерации
const maxGenerateSpanDays = 30

type generateRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type generateResponse struct {
	TemplateID   uuid.UUID `json:"templateId"`
	StartDate    string    `json:"startDate"`
	EndDate      string    `json:"endDate"`
	SlotsCreated int       `json:"slotsCreated"`
	Message      string    `json:"message"`
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) CreateTemplate(c echo.Context) error {
	var in service.TemplateInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err.Error())
	}

	tmpl, err := h.svc.Templates.CreateTemplate(c.Request().Context(), in)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, tmpl)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	list, err := h.svc.Templates.ListTemplates(c.Request().Context(), c.QueryParam("practitionerId"))
	if err != nil {
		return h.fail(err)
	}
	if list == nil {
		list = []*model.Template{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetTemplate(c echo.Context) error {
	id, err := templateID(c)
	if err != nil {
		return err
	}

	tmpl, err := h.svc.Templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) UpdateTemplate(c echo.Context) error {
	id, err := templateID(c)
	if err != nil {
		return err
	}
	var in service.TemplateInput
	if err := c.Bind(&in); err != nil {
		return badRequest(err.Error())
	}

	tmpl, err := h.svc.Templates.UpdateTemplate(c.Request().Context(), id, in)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) SetTemplateActive(c echo.Context) error {
	id, err := templateID(c)
	if err != nil {
		return err
	}
	var req activeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}
	if req.Active == nil {
		return badRequest("active is required")
	}

	if err := h.svc.Templates.SetActive(c.Request().Context(), id, *req.Active); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := templateID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Templates.DeleteTemplate(c.Request().Context(), id); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GenerateSlots запускает генерацию шаблона на диапазон дат включительно
func (h *Handler) GenerateSlots(c echo.Context) error {
	id, err := templateID(c)
	if err != nil {
		return err
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err.Error())
	}

	from, err := model.ParseDate(req.StartDate, h.loc)
	if err != nil {
		return badRequest(fmt.Sprintf("invalid startDate %q", req.StartDate))
	}
	to, err := model.ParseDate(req.EndDate, h.loc)
	if err != nil {
		return badRequest(fmt.Sprintf("invalid endDate %q", req.EndDate))
	}
	if to.Before(from) {
		return badRequest("startDate must be on or before endDate")
	}
	if to.After(from.AddDate(0, 0, maxGenerateSpanDays)) {
		return badRequest(fmt.Sprintf("endDate cannot be more than %d days after startDate", maxGenerateSpanDays))
	}

	created, err := h.svc.Generator.Generate(c.Request().Context(), id, from, to)
	if err != nil {
		return h.fail(err)
	}

	message := "Slots generated"
	if created == 0 {
		message = "No new slots created (maybe duplicates or inactive template)"
	}
	return c.JSON(http.StatusOK, generateResponse{
		TemplateID:   id,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		SlotsCreated: created,
		Message:      message,
	})
}

// ListSlots слоты врача с from по to включительно
func (h *Handler) ListSlots(c echo.Context) error {
	from, err := model.ParseDate(c.QueryParam("from"), h.loc)
	if err != nil {
		return badRequest("from must be a date in YYYY-MM-DD format")
	}
	to, err := model.ParseDate(c.QueryParam("to"), h.loc)
	if err != nil {
		return badRequest("to must be a date in YYYY-MM-DD format")
	}

	slots, err := h.svc.Generator.ListSlots(c.Request().Context(), c.QueryParam("practitionerId"), from, to.AddDate(0, 0, 1))
	if err != nil {
		return h.fail(err)
	}
	if slots == nil {
		slots = []*model.Slot{}
	}
	return c.JSON(http.StatusOK, slots)
}

func templateID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest(fmt.Sprintf("invalid template id %q", c.Param("id")))
	}
	return id, nil
}

