// Package api HTTP API расписания занятий.
package api

import (
	"context"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Scheduler операции расписания от имени участника, реализуется service.Controller
type Scheduler interface {
	CreateSession(ctx context.Context, actor model.Actor, req service.CreateSessionRequest) (*model.Session, error)
	GetSessionByID(ctx context.Context, actor model.Actor, id int64) (*model.Session, error)
	ListSessionsByTutor(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.Session, error)
	ListSessionsByChild(ctx context.Context, actor model.Actor, childID int64) ([]*model.Session, error)
	ListSessionsByParent(ctx context.Context, actor model.Actor, parentID int64) ([]*model.Session, error)
	UpdateSession(ctx context.Context, actor model.Actor, id int64, req service.UpdateSessionRequest) (*model.Session, error)
	CancelSession(ctx context.Context, actor model.Actor, id int64, reason *string) (*model.Session, error)
	ChangeStatus(ctx context.Context, actor model.Actor, id int64, next model.SessionStatus, reason *string) (*model.Session, error)

	AddAvailabilitySlot(ctx context.Context, actor model.Actor, tutorID int64, days []model.DayOfWeek, start, end model.TimeOfDay) ([]*model.AvailabilitySlot, error)
	UpdateAvailabilitySlot(ctx context.Context, actor model.Actor, id int64, changes service.SlotChanges) (*model.AvailabilitySlot, error)
	DeleteAvailabilitySlot(ctx context.Context, actor model.Actor, id int64) error
	ListAvailability(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.AvailabilitySlot, error)
	AddUnavailableDate(ctx context.Context, actor model.Actor, tutorID int64, date time.Time, reason *string) (*model.UnavailableDate, error)
	DeleteUnavailableDate(ctx context.Context, actor model.Actor, id int64) error
	ListUnavailableDates(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.UnavailableDate, error)
}

// LinkTokenIssuer выпускает токен для привязки Telegram
type LinkTokenIssuer interface {
	GenerateLinkToken(actor model.Actor) (string, error)
}

type Handler struct {
	scheduler   Scheduler
	linkTokens  LinkTokenIssuer
	botUsername string
	loc         *time.Location
	logger      *zap.Logger
}

func NewHandler(scheduler Scheduler, linkTokens LinkTokenIssuer, botUsername string, loc *time.Location, logger *zap.Logger) *Handler {
	return &Handler{
		scheduler:   scheduler,
		linkTokens:  linkTokens,
		botUsername: botUsername,
		loc:         loc,
		logger:      logger,
	}
}

// paramID разбирает числовой параметр пути. При false ответ уже записан.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// parseDate разбирает дату "YYYY-MM-DD" как календарный день
func parseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

// LinkTelegram выдаёт ссылку для привязки чата Telegram
// POST /api/v1/telegram/link
func (h *Handler) LinkTelegram(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}

	token, err := h.linkTokens.GenerateLinkToken(actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := gin.H{"token": token}
	if h.botUsername != "" {
		data["url"] = "https://t.me/" + h.botUsername + "?start=" + token
	}
	OK(c, data)
}
