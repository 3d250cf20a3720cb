package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var weekdays = [...]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayOfWeekOf возвращает день недели для календарной даты
func DayOfWeekOf(date time.Time) DayOfWeek {
	return weekdays[date.Weekday()]
}

// ParseDayOfWeek разбирает название дня недели без учёта регистра
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("invalid day of week %q", s)
	}
	return d, nil
}

func (d DayOfWeek) Valid() bool {
	for _, w := range weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// AvailabilitySlot регулярное недельное окно доступности репетитора
type AvailabilitySlot struct {
	ID        int64     `json:"id"`
	GroupID   uuid.UUID `json:"group_id"` // общий для слотов, созданных одним запросом
	TutorID   int64     `json:"tutor_id"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnavailableDate день, полностью закрытый для записи
type UnavailableDate struct {
	ID        int64     `json:"id"`
	TutorID   int64     `json:"tutor_id"`
	Date      time.Time `json:"date"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
