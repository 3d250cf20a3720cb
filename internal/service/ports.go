package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// TxManager открывает транзакцию, репозитории подхватывают её из контекста
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AvailabilityRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	GetByID(ctx context.Context, id int64) (*model.AvailabilitySlot, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]*model.AvailabilitySlot, error)
	ListByTutorAndDay(ctx context.Context, tutorID int64, day model.DayOfWeek) ([]*model.AvailabilitySlot, error)
	Update(ctx context.Context, slot *model.AvailabilitySlot) error
	Delete(ctx context.Context, id int64) error
}

type UnavailableDateRepository interface {
	Create(ctx context.Context, d *model.UnavailableDate) error
	GetByID(ctx context.Context, id int64) (*model.UnavailableDate, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]*model.UnavailableDate, error)
	ListByTutorAndDate(ctx context.Context, tutorID int64, date time.Time) ([]*model.UnavailableDate, error)
	Delete(ctx context.Context, id int64) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id int64) (*model.Session, error)
	Update(ctx context.Context, session *model.Session) error
	UpdateStatus(ctx context.Context, id int64, from, to model.SessionStatus) error
	Cancel(ctx context.Context, id int64, from model.SessionStatus, actorID int64, reason *string) error
	FindOverlapping(ctx context.Context, tutorID int64, date, start, end time.Time, excludeID int64) ([]*model.Session, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]*model.Session, error)
	ListByChild(ctx context.Context, childID int64) ([]*model.Session, error)
	ListByChildIDs(ctx context.Context, childIDs []int64) ([]*model.Session, error)
	ListByDate(ctx context.Context, date time.Time, statuses []model.SessionStatus) ([]*model.Session, error)
}

// Directory внешние справочники платформы: принадлежность детей, репетиторы, каталог
type Directory interface {
	ChildBelongsToParent(ctx context.Context, childID, parentID int64) (bool, error)
	ChildrenOfParent(ctx context.Context, parentID int64) ([]int64, error)
	ParentOfChild(ctx context.Context, childID int64) (int64, error)
	TutorExists(ctx context.Context, tutorID int64) (bool, error)
	SubjectExists(ctx context.Context, subjectID int64) (bool, error)
	GradeExists(ctx context.Context, gradeID int64) (bool, error)
}

type EventType string

const (
	EventSessionRequested     EventType = "session_requested"
	EventSessionRescheduled   EventType = "session_rescheduled"
	EventSessionCancelled     EventType = "session_cancelled"
	EventSessionStatusChanged EventType = "session_status_changed"
	EventSessionReminder      EventType = "session_reminder"
)

// Event уведомление о занятии
type Event struct {
	Type    EventType
	Session *model.Session
}

// Notifier доставляет уведомления. Ошибки доставки не влияют на расписание.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event Event) error
}

// UserRepository учётные записи платформы и их привязка к Telegram
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByTelegramChat(ctx context.Context, chatID int64) (*model.User, error)
	LinkTelegramChat(ctx context.Context, userID, chatID int64) error
}
