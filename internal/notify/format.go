package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
)

// StatusDisplay отображение статуса занятия
type StatusDisplay struct {
	Emoji string
	Text  string
}

var statusDisplays = map[model.SessionStatus]StatusDisplay{
	model.SessionStatusRequested:      {"⏳", "Ожидает подтверждения"},
	model.SessionStatusPendingPayment: {"💳", "Ожидает оплаты"},
	model.SessionStatusConfirmed:      {"✅", "Подтверждено"},
	model.SessionStatusCancelled:      {"❌", "Отменено"},
	model.SessionStatusCompleted:      {"✔️", "Проведено"},
	model.SessionStatusMissed:         {"🚫", "Пропущено"},
}

// GetStatusDisplay возвращает emoji и текст для статуса занятия
func GetStatusDisplay(status model.SessionStatus) StatusDisplay {
	if display, ok := statusDisplays[status]; ok {
		return display
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

var weekdayNames = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// FormatSessionTime форматирует время занятия: "Пн 02.03.2026 10:00-11:00"
func FormatSessionTime(session *model.Session, loc *time.Location) string {
	start := session.StartTime.In(loc)
	end := session.EndTime.In(loc)
	return fmt.Sprintf("%s %s %s-%s",
		weekdayNames[start.Weekday()], start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
}

// FormatSessionLine краткая строка для списка занятий
func FormatSessionLine(session *model.Session, loc *time.Location) string {
	display := GetStatusDisplay(session.Status)
	return fmt.Sprintf("%s #%d %s (%s)", display.Emoji, session.ID, FormatSessionTime(session, loc), display.Text)
}

var eventTitles = map[service.EventType]string{
	service.EventSessionRequested:     "📝 Новый запрос на занятие",
	service.EventSessionRescheduled:   "🔁 Занятие перенесено",
	service.EventSessionCancelled:     "❌ Занятие отменено",
	service.EventSessionStatusChanged: "🔔 Статус занятия изменён",
	service.EventSessionReminder:      "⏰ Напоминание: завтра занятие",
}

// FormatEvent текст уведомления
func FormatEvent(event service.Event, loc *time.Location) string {
	title, ok := eventTitles[event.Type]
	if !ok {
		title = "🔔 " + string(event.Type)
	}

	session := event.Session
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📅 %s\n", FormatSessionTime(session, loc))
	display := GetStatusDisplay(session.Status)
	fmt.Fprintf(&b, "%s %s", display.Emoji, display.Text)

	if event.Type == service.EventSessionCancelled && session.CancellationReason != nil {
		fmt.Fprintf(&b, "\nПричина: %s", *session.CancellationReason)
	}
	if session.Notes != nil && *session.Notes != "" {
		fmt.Fprintf(&b, "\n📝 %s", *session.Notes)
	}

	return b.String()
}
