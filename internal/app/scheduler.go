package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReminderSender рассылает напоминания о занятиях на завтра
type ReminderSender interface {
	SendReminders(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron      *cron.Cron
	reminders ReminderSender
	timeout   time.Duration
	logger    *zap.Logger
}

// NewScheduler создаёт планировщик с задачей напоминаний по расписанию schedule (формат cron из 5 полей)
func NewScheduler(reminders ReminderSender, schedule string, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		reminders: reminders,
		timeout:   5 * time.Minute,
		logger:    logger,
	}

	// Следующий запуск пропускается, если предыдущий ещё не закончился
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if _, err := s.cron.AddFunc(schedule, func() { s.sendReminders(context.Background()) }); err != nil {
		return nil, fmt.Errorf("add reminder job %q: %w", schedule, err)
	}

	return s, nil
}

// Start запускает фоновые задачи
func (s *Scheduler) Start() {
	s.logger.Info("Starting background scheduler", zap.Time("next_run", s.nextRun()))
	s.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения запущенных задач
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Background jobs did not finish before shutdown")
	}
}

func (s *Scheduler) nextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(time.Now())
}

// sendReminders один прогон рассылки напоминаний
func (s *Scheduler) sendReminders(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Info("Sending session reminders")

	sent, err := s.reminders.SendReminders(ctx)
	if err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
		return
	}

	s.logger.Info("Session reminders sent", zap.Int("sessions", sent))
}
