package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
)

const calendarProductID = "-//tutoring-scheduler//sessions//RU"

var calendarStatuses = map[model.SessionStatus]ics.ObjectStatus{
	model.SessionStatusRequested:      ics.ObjectStatusTentative,
	model.SessionStatusPendingPayment: ics.ObjectStatusTentative,
	model.SessionStatusConfirmed:      ics.ObjectStatusConfirmed,
	model.SessionStatusCompleted:      ics.ObjectStatusConfirmed,
	model.SessionStatusMissed:         ics.ObjectStatusCancelled,
	model.SessionStatusCancelled:      ics.ObjectStatusCancelled,
}

// BuildCalendar собирает iCalendar с занятиями
func BuildCalendar(name string, sessions []*model.Session, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(name)

	for _, s := range sessions {
		event := cal.AddEvent(fmt.Sprintf("session-%d@tutoring-scheduler", s.ID))
		event.SetDtStampTime(stamp)
		event.SetCreatedTime(s.CreatedAt)
		event.SetModifiedAt(s.UpdatedAt)
		event.SetStartAt(s.StartTime)
		event.SetEndAt(s.EndTime)
		event.SetSummary(fmt.Sprintf("Занятие #%d", s.ID))
		if s.Notes != nil {
			event.SetDescription(*s.Notes)
		}
		if status, ok := calendarStatuses[s.Status]; ok {
			event.SetStatus(status)
		}
	}

	return cal.Serialize()
}

// TutorCalendar отдаёт занятия репетитора в формате iCalendar
// GET /api/v1/tutors/:id/calendar.ics
func (h *Handler) TutorCalendar(c *gin.Context) {
	actor, ok := mustGetActor(c)
	if !ok {
		return
	}
	tutorID, ok := paramID(c, "id")
	if !ok {
		return
	}

	sessions, err := h.scheduler.ListSessionsByTutor(c.Request.Context(), actor, tutorID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := BuildCalendar(fmt.Sprintf("Tutor %d", tutorID), sessions, time.Now())

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="tutor-%d.ics"`, tutorID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
