package api

import (
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/gin-gonic/gin"
)

type addSlotRequest struct {
	Days      []model.DayOfWeek `json:"days" binding:"required,min=1,max=7"`
	StartTime *model.TimeOfDay  `json:"start_time" binding:"required"`
	EndTime   *model.TimeOfDay  `json:"end_time" binding:"required"`
}

type updateSlotRequest struct {
	DayOfWeek *model.DayOfWeek `json:"day_of_week"`
	StartTime *model.TimeOfDay `json:"start_time"`
	EndTime   *model.TimeOfDay `json:"end_time"`
}

type addUnavailableDateRequest struct {
	Date   string  `json:"date" binding:"required"`
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

// AddAvailabilitySlot создаёт слоты на выбранные дни недели
// POST /api/v1/tutors/:id/availability
func (h *Handler) AddAvailabilitySlot(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	tutorID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req addSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	slots, err := h.scheduler.AddAvailabilitySlot(c.Request.Context(), actor, tutorID, req.Days, *req.StartTime, *req.EndTime)
	if err != nil {
		h.writeError(c, err)
		return
	}

	Created(c, gin.H{"list": slots})
}

// ListAvailability GET /api/v1/tutors/:id/availability
func (h *Handler) ListAvailability(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	tutorID, ok := paramID(c, "id")
	if !ok {
		return
	}

	slots, err := h.scheduler.ListAvailability(c.Request.Context(), actor, tutorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if slots == nil {
		slots = []*model.AvailabilitySlot{}
	}

	OK(c, gin.H{"list": slots})
}

// UpdateAvailabilitySlot PATCH /api/v1/availability/:id
func (h *Handler) UpdateAvailabilitySlot(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	slot, err := h.scheduler.UpdateAvailabilitySlot(c.Request.Context(), actor, id, service.SlotChanges{
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	OK(c, slot)
}

// DeleteAvailabilitySlot DELETE /api/v1/availability/:id
func (h *Handler) DeleteAvailabilitySlot(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduler.DeleteAvailabilitySlot(c.Request.Context(), actor, id); err != nil {
		h.writeError(c, err)
		return
	}

	NoContent(c)
}

// AddUnavailableDate POST /api/v1/tutors/:id/unavailable-dates
func (h *Handler) AddUnavailableDate(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	tutorID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req addUnavailableDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		BadRequest(c, "date must be YYYY-MM-DD")
		return
	}

	blocked, err := h.scheduler.AddUnavailableDate(c.Request.Context(), actor, tutorID, date, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	Created(c, blocked)
}

// ListUnavailableDates GET /api/v1/tutors/:id/unavailable-dates
func (h *Handler) ListUnavailableDates(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	tutorID, ok := paramID(c, "id")
	if !ok {
		return
	}

	dates, err := h.scheduler.ListUnavailableDates(c.Request.Context(), actor, tutorID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if dates == nil {
		dates = []*model.UnavailableDate{}
	}

	OK(c, gin.H{"list": dates})
}

// DeleteUnavailableDate DELETE /api/v1/unavailable-dates/:id
func (h *Handler) DeleteUnavailableDate(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.scheduler.DeleteUnavailableDate(c.Request.Context(), actor, id); err != nil {
		h.writeError(c, err)
		return
	}

	NoContent(c)
}
