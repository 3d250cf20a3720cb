// Package interval содержит проверки пересечения и вложения временных интервалов.
//
// Все интервалы полуоткрытые: [start, end). Занятие, заканчивающееся в 11:00,
// не пересекается с занятием, начинающимся в 11:00.
package interval

import (
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// Overlaps сообщает, есть ли у [aStart, aEnd) и [bStart, bEnd) общий момент
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsTimeOfDay то же, что Overlaps, для времени суток
func OverlapsTimeOfDay(aStart, aEnd, bStart, bEnd model.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Contains сообщает, покрывает ли внешний интервал внутренний целиком
func Contains(outerStart, outerEnd, innerStart, innerEnd time.Time) bool {
	return !innerStart.Before(outerStart) && !innerEnd.After(outerEnd)
}

// ContainsTimeOfDay то же, что Contains, для времени суток
func ContainsTimeOfDay(outerStart, outerEnd, innerStart, innerEnd model.TimeOfDay) bool {
	return outerStart <= innerStart && innerEnd <= outerEnd
}

// MinutesSinceMidnight отбрасывает дату и возвращает минуты от полуночи
func MinutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
