package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createSessionRequest struct {
	ParentID  int64            `json:"parent_id"`
	TutorID   int64            `json:"tutor_id" binding:"required,gt=0"`
	ChildID   int64            `json:"child_id" binding:"required,gt=0"`
	SubjectID int64            `json:"subject_id" binding:"required,gt=0"`
	GradeID   *int64           `json:"grade_id" binding:"omitempty,gt=0"`
	Date      string           `json:"date" binding:"required"`
	StartTime *model.TimeOfDay `json:"start_time" binding:"required"`
	EndTime   *model.TimeOfDay `json:"end_time" binding:"required"`
	Amount    decimal.Decimal  `json:"amount"`
	Notes     *string          `json:"notes" binding:"omitempty,max=2000"`
}

type updateSessionRequest struct {
	TutorID   *int64           `json:"tutor_id" binding:"omitempty,gt=0"`
	SubjectID *int64           `json:"subject_id" binding:"omitempty,gt=0"`
	GradeID   *int64           `json:"grade_id" binding:"omitempty,gt=0"`
	Date      *string          `json:"date"`
	StartTime *model.TimeOfDay `json:"start_time"`
	EndTime   *model.TimeOfDay `json:"end_time"`
	Amount    *decimal.Decimal `json:"amount"`
	Notes     *string          `json:"notes" binding:"omitempty,max=2000"`
}

type cancelSessionRequest struct {
	Reason *string `json:"reason" binding:"omitempty,max=500"`
}

type changeStatusRequest struct {
	Status model.SessionStatus `json:"status" binding:"required"`
	Reason *string             `json:"reason" binding:"omitempty,max=500"`
}

// CreateSession запрос на занятие
// POST /api/v1/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		BadRequest(c, "date must be YYYY-MM-DD")
		return
	}

	session, err := h.scheduler.CreateSession(c.Request.Context(), actor, service.CreateSessionRequest{
		ParentID:  req.ParentID,
		TutorID:   req.TutorID,
		ChildID:   req.ChildID,
		SubjectID: req.SubjectID,
		GradeID:   req.GradeID,
		Date:      date,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		Amount:    req.Amount,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	Created(c, session)
}

// GetSession GET /api/v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	session, err := h.scheduler.GetSessionByID(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	OK(c, session)
}

// UpdateSession PATCH /api/v1/sessions/:id
func (h *Handler) UpdateSession(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	update := service.UpdateSessionRequest{
		TutorID:   req.TutorID,
		SubjectID: req.SubjectID,
		GradeID:   req.GradeID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Amount:    req.Amount,
		Notes:     req.Notes,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		update.Date = &date
	}

	session, err := h.scheduler.UpdateSession(c.Request.Context(), actor, id, update)
	if err != nil {
		h.writeError(c, err)
		return
	}

	OK(c, session)
}

// CancelSession POST /api/v1/sessions/:id/cancel
func (h *Handler) CancelSession(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req cancelSessionRequest
	// Тело необязательно, в том числе при chunked передаче без Content-Length
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			BadRequest(c, err.Error())
			return
		}
	}

	session, err := h.scheduler.CancelSession(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	OK(c, session)
}

// ChangeStatus POST /api/v1/sessions/:id/status
func (h *Handler) ChangeStatus(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	session, err := h.scheduler.ChangeStatus(c.Request.Context(), actor, id, req.Status, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	OK(c, session)
}

// ListTutorSessions GET /api/v1/tutors/:id/sessions
func (h *Handler) ListTutorSessions(c *gin.Context) {
	h.listSessions(c, h.scheduler.ListSessionsByTutor)
}

// ListChildSessions GET /api/v1/children/:id/sessions
func (h *Handler) ListChildSessions(c *gin.Context) {
	h.listSessions(c, h.scheduler.ListSessionsByChild)
}

// ListParentSessions GET /api/v1/parents/:id/sessions
func (h *Handler) ListParentSessions(c *gin.Context) {
	h.listSessions(c, h.scheduler.ListSessionsByParent)
}

type listSessionsFunc func(ctx context.Context, actor model.Actor, ownerID int64) ([]*model.Session, error)

func (h *Handler) listSessions(c *gin.Context, list listSessionsFunc) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	sessions, err := list(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}

	OK(c, gin.H{"list": sessions})
}
