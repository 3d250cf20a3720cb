package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusRequested      SessionStatus = "REQUESTED"       // Создана запросом родителя
	SessionStatusPendingPayment SessionStatus = "PENDING_PAYMENT" // Ожидает оплаты
	SessionStatusConfirmed      SessionStatus = "CONFIRMED"       // Оплачена и подтверждена
	SessionStatusCancelled      SessionStatus = "CANCELLED"
	SessionStatusCompleted      SessionStatus = "COMPLETED"
	SessionStatusMissed         SessionStatus = "MISSED"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusRequested:      {SessionStatusPendingPayment, SessionStatusConfirmed, SessionStatusCancelled},
	SessionStatusPendingPayment: {SessionStatusConfirmed, SessionStatusCancelled},
	SessionStatusConfirmed:      {SessionStatusCompleted, SessionStatusCancelled, SessionStatusMissed},
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusRequested, SessionStatusPendingPayment, SessionStatusConfirmed,
		SessionStatusCancelled, SessionStatusCompleted, SessionStatusMissed:
		return true
	}
	return false
}

// Terminal сообщает что из статуса нет переходов
func (s SessionStatus) Terminal() bool {
	return len(sessionTransitions[s]) == 0
}

// CanTransitionTo проверяет переход по таблице жизненного цикла
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Session struct {
	ID                 int64           `json:"id"`
	TutorID            int64           `json:"tutor_id"`
	ChildID            int64           `json:"child_id"`
	SubjectID          int64           `json:"subject_id"`
	GradeID            *int64          `json:"grade_id,omitempty"`
	Date               time.Time       `json:"date"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            time.Time       `json:"end_time"`
	DurationMinutes    int             `json:"duration_minutes"`
	Status             SessionStatus   `json:"status"`
	CancelledBy        *int64          `json:"cancelled_by,omitempty"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Notes              *string         `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
