package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// Бизнес-ошибки расписания. Вызывающая сторона различает их через errors.Is.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrTutorUnavailable   = errors.New("tutor unavailable")
	ErrSchedulingConflict = errors.New("scheduling conflict")
	ErrInvalidTransition  = errors.New("invalid status transition")

	// ErrInternal непредвиденный сбой хранилища, а не результат проверки
	ErrInternal = errors.New("internal error")
)

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func invalidTransition(from, to model.SessionStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// InternalError оборачивает ошибку хранилища или внешнего сервиса
type InternalError struct {
	Op  string
	Err error
}

func internal(op string, err error) error {
	return &InternalError{Op: op, Err: err}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }

// UnavailableReason почему репетитор недоступен
type UnavailableReason string

const (
	ReasonDateBlocked    UnavailableReason = "date_blocked"
	ReasonNoSlotsOnDay   UnavailableReason = "no_slots_on_day"
	ReasonOutsideOfSlots UnavailableReason = "outside_of_slots"
)

// UnavailableError запрошенное время не покрыто доступностью репетитора
type UnavailableError struct {
	TutorID   int64
	Date      time.Time
	StartTime model.TimeOfDay
	EndTime   model.TimeOfDay
	Reason    UnavailableReason

	// Слоты на этот день недели, если они есть. Пригодятся для подсказки пользователю.
	Slots []*model.AvailabilitySlot

	// Заполнено при Reason == ReasonDateBlocked
	BlockReason *string
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("tutor %d unavailable on %s %s-%s: %s",
		e.TutorID, e.Date.Format(time.DateOnly), e.StartTime, e.EndTime, e.Reason)

	if len(e.Slots) > 0 {
		windows := make([]string, len(e.Slots))
		for i, s := range e.Slots {
			windows[i] = s.StartTime.String() + "-" + s.EndTime.String()
		}
		msg += " (available: " + strings.Join(windows, ", ") + ")"
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool { return target == ErrTutorUnavailable }

// ConflictError запрошенное время пересекается с уже записанными занятиями
type ConflictError struct {
	TutorID    int64
	StartTime  time.Time
	EndTime    time.Time
	SessionIDs []int64
}

func (e *ConflictError) Error() string {
	if len(e.SessionIDs) == 0 {
		return fmt.Sprintf("tutor %d already booked for %s-%s",
			e.TutorID, e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
	}
	return fmt.Sprintf("tutor %d already booked for %s-%s (sessions %v)",
		e.TutorID, e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339), e.SessionIDs)
}

func (e *ConflictError) Is(target error) bool { return target == ErrSchedulingConflict }
