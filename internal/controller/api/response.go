package api

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/gin-gonic/gin"
)

// Коды ошибок в теле ответа
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeTutorUnavailable   = "TUTOR_UNAVAILABLE"
	CodeSchedulingConflict = "SCHEDULING_CONFLICT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeInternal           = "INTERNAL_ERROR"
)

// Response единый формат ответа
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: "OK", Message: "success", Data: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Code: "OK", Message: "success", Data: data})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func Error(c *gin.Context, status int, code, message string, data any) {
	c.AbortWithStatusJSON(status, Response{Code: code, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeInvalidRequest, message, nil)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message, nil)
}

// unavailableDetails контекст отказа по доступности
type unavailableDetails struct {
	Reason      service.UnavailableReason `json:"reason"`
	Date        string                    `json:"date"`
	StartTime   string                    `json:"start_time"`
	EndTime     string                    `json:"end_time"`
	Slots       []slotWindow              `json:"available_slots,omitempty"`
	BlockReason *string                   `json:"block_reason,omitempty"`
}

type slotWindow struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type conflictDetails struct {
	SessionIDs []int64 `json:"conflicting_session_ids"`
}

// writeError переводит бизнес-ошибку в HTTP ответ
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		unavailable *service.UnavailableError
		conflict    *service.ConflictError
	)

	switch {
	case errors.As(err, &unavailable):
		details := unavailableDetails{
			Reason:      unavailable.Reason,
			Date:        unavailable.Date.Format("2006-01-02"),
			StartTime:   unavailable.StartTime.String(),
			EndTime:     unavailable.EndTime.String(),
			BlockReason: unavailable.BlockReason,
		}
		for _, s := range unavailable.Slots {
			details.Slots = append(details.Slots, slotWindow{StartTime: s.StartTime.String(), EndTime: s.EndTime.String()})
		}
		Error(c, http.StatusConflict, CodeTutorUnavailable, err.Error(), details)
	case errors.As(err, &conflict):
		Error(c, http.StatusConflict, CodeSchedulingConflict, err.Error(), conflictDetails{SessionIDs: conflict.SessionIDs})
	case errors.Is(err, service.ErrSchedulingConflict):
		Error(c, http.StatusConflict, CodeSchedulingConflict, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidRequest):
		Error(c, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		Error(c, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidTransition):
		Error(c, http.StatusUnprocessableEntity, CodeInvalidTransition, err.Error(), nil)
	default:
		// Детали сбоя хранилища наружу не отдаём
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, CodeInternal, "internal error", nil)
	}
}
