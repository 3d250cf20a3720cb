package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"go.uber.org/zap"
)

// ReminderService напоминает о подтверждённых занятиях на завтра
type ReminderService struct {
	sessions  SessionRepository
	directory Directory
	notifier  Notifier
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

func NewReminderService(sessions SessionRepository, directory Directory, notifier Notifier, loc *time.Location, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		sessions:  sessions,
		directory: directory,
		notifier:  notifier,
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// SendReminders уведомляет репетитора и родителя о каждом подтверждённом занятии следующего дня.
// Возвращает количество занятий, по которым ушли напоминания.
func (s *ReminderService) SendReminders(ctx context.Context) (int, error) {
	tomorrow := dateOnly(s.now().In(s.loc)).AddDate(0, 0, 1)

	sessions, err := s.sessions.ListByDate(ctx, tomorrow, []model.SessionStatus{model.SessionStatusConfirmed})
	if err != nil {
		return 0, internal("list sessions for reminders", err)
	}

	for _, session := range sessions {
		event := Event{Type: EventSessionReminder, Session: session}

		if err := s.notifier.Notify(ctx, session.TutorID, event); err != nil {
			s.logger.Warn("Failed to remind tutor",
				zap.Int64("session_id", session.ID),
				zap.Int64("tutor_id", session.TutorID),
				zap.Error(err),
			)
		}

		parentID, err := s.directory.ParentOfChild(ctx, session.ChildID)
		if err != nil {
			s.logger.Warn("Failed to resolve parent for reminder",
				zap.Int64("session_id", session.ID),
				zap.Int64("child_id", session.ChildID),
				zap.Error(err),
			)
			continue
		}
		if err := s.notifier.Notify(ctx, parentID, event); err != nil {
			s.logger.Warn("Failed to remind parent",
				zap.Int64("session_id", session.ID),
				zap.Int64("parent_id", parentID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Session reminders sent",
		zap.String("date", tomorrow.Format(time.DateOnly)),
		zap.Int("sessions_count", len(sessions)),
	)

	return len(sessions), nil
}
