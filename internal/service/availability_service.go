package service

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AvailabilityService управляет регулярными слотами и недоступными днями репетиторов
type AvailabilityService struct {
	tx        TxManager
	slots     AvailabilityRepository
	blocked   UnavailableDateRepository
	directory Directory
	logger    *zap.Logger
}

func NewAvailabilityService(
	tx TxManager,
	slots AvailabilityRepository,
	blocked UnavailableDateRepository,
	directory Directory,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		tx:        tx,
		slots:     slots,
		blocked:   blocked,
		directory: directory,
		logger:    logger,
	}
}

// SlotChanges частичное обновление слота, nil означает "не менять"
type SlotChanges struct {
	DayOfWeek *model.DayOfWeek
	StartTime *model.TimeOfDay
	EndTime   *model.TimeOfDay
}

func validateRange(start, end model.TimeOfDay) error {
	if !start.Valid() || !end.Valid() {
		return invalidRequest("time of day out of range: %s-%s", start, end)
	}
	if start >= end {
		return invalidRequest("start %s must be before end %s", start, end)
	}
	return nil
}

// dateOnly отбрасывает время, сохраняя календарную дату
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *AvailabilityService) requireTutor(ctx context.Context, tutorID int64) error {
	ok, err := s.directory.TutorExists(ctx, tutorID)
	if err != nil {
		return internal("check tutor", err)
	}
	if !ok {
		return notFound("tutor", tutorID)
	}
	return nil
}

// AddSlot создаёт по слоту на каждый день недели из days. Все слоты получают общий group_id.
func (s *AvailabilityService) AddSlot(ctx context.Context, tutorID int64, days []model.DayOfWeek, start, end model.TimeOfDay) ([]*model.AvailabilitySlot, error) {
	if len(days) == 0 {
		return nil, invalidRequest("at least one day of week is required")
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	// Повторы дней схлопываем, порядок сохраняем
	seen := make(map[model.DayOfWeek]bool, len(days))
	unique := make([]model.DayOfWeek, 0, len(days))
	for _, day := range days {
		if !day.Valid() {
			return nil, invalidRequest("invalid day of week %q", day)
		}
		if !seen[day] {
			seen[day] = true
			unique = append(unique, day)
		}
	}

	if err := s.requireTutor(ctx, tutorID); err != nil {
		return nil, err
	}

	groupID := uuid.New()
	created := make([]*model.AvailabilitySlot, 0, len(unique))

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, day := range unique {
			slot := &model.AvailabilitySlot{
				GroupID:   groupID,
				TutorID:   tutorID,
				DayOfWeek: day,
				StartTime: start,
				EndTime:   end,
			}
			if err := s.slots.Create(ctx, slot); err != nil {
				return internal("create slot", err)
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Availability slots created",
		zap.String("group_id", groupID.String()),
		zap.Int64("tutor_id", tutorID),
		zap.Int("days_count", len(unique)),
		zap.Stringer("start", start),
		zap.Stringer("end", end),
	)

	return created, nil
}

// GetSlot получает слот по ID
func (s *AvailabilityService) GetSlot(ctx context.Context, id int64) (*model.AvailabilitySlot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, internal("get slot", err)
	}
	if slot == nil {
		return nil, notFound("availability slot", id)
	}
	return slot, nil
}

// UpdateSlot применяет частичные изменения к слоту
func (s *AvailabilityService) UpdateSlot(ctx context.Context, id int64, changes SlotChanges) (*model.AvailabilitySlot, error) {
	slot, err := s.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	if changes.DayOfWeek != nil {
		if !changes.DayOfWeek.Valid() {
			return nil, invalidRequest("invalid day of week %q", *changes.DayOfWeek)
		}
		slot.DayOfWeek = *changes.DayOfWeek
	}
	if changes.StartTime != nil {
		slot.StartTime = *changes.StartTime
	}
	if changes.EndTime != nil {
		slot.EndTime = *changes.EndTime
	}

	if err := validateRange(slot.StartTime, slot.EndTime); err != nil {
		return nil, err
	}

	if err := s.slots.Update(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("availability slot", id)
		}
		return nil, internal("update slot", err)
	}

	s.logger.Info("Availability slot updated",
		zap.Int64("slot_id", id),
		zap.Int64("tutor_id", slot.TutorID),
		zap.String("day_of_week", string(slot.DayOfWeek)),
		zap.Stringer("start", slot.StartTime),
		zap.Stringer("end", slot.EndTime),
	)

	return slot, nil
}

// DeleteSlot удаляет слот. Повторное удаление возвращает NotFound.
func (s *AvailabilityService) DeleteSlot(ctx context.Context, id int64) error {
	if err := s.slots.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("availability slot", id)
		}
		return internal("delete slot", err)
	}

	s.logger.Info("Availability slot deleted", zap.Int64("slot_id", id))
	return nil
}

// ListSlots получает все слоты репетитора
func (s *AvailabilityService) ListSlots(ctx context.Context, tutorID int64) ([]*model.AvailabilitySlot, error) {
	slots, err := s.slots.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, internal("list slots", err)
	}
	return slots, nil
}

// AddUnavailableDate закрывает день целиком, независимо от регулярных слотов
func (s *AvailabilityService) AddUnavailableDate(ctx context.Context, tutorID int64, date time.Time, reason *string) (*model.UnavailableDate, error) {
	if date.IsZero() {
		return nil, invalidRequest("date is required")
	}
	if err := s.requireTutor(ctx, tutorID); err != nil {
		return nil, err
	}

	d := &model.UnavailableDate{
		TutorID: tutorID,
		Date:    dateOnly(date),
		Reason:  reason,
	}

	if err := s.blocked.Create(ctx, d); err != nil {
		return nil, internal("create unavailable date", err)
	}

	s.logger.Info("Unavailable date added",
		zap.Int64("unavailable_date_id", d.ID),
		zap.Int64("tutor_id", tutorID),
		zap.String("date", d.Date.Format(time.DateOnly)),
	)

	return d, nil
}

// GetUnavailableDate получает недоступный день по ID
func (s *AvailabilityService) GetUnavailableDate(ctx context.Context, id int64) (*model.UnavailableDate, error) {
	d, err := s.blocked.GetByID(ctx, id)
	if err != nil {
		return nil, internal("get unavailable date", err)
	}
	if d == nil {
		return nil, notFound("unavailable date", id)
	}
	return d, nil
}

// DeleteUnavailableDate снимает блокировку дня
func (s *AvailabilityService) DeleteUnavailableDate(ctx context.Context, id int64) error {
	if err := s.blocked.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("unavailable date", id)
		}
		return internal("delete unavailable date", err)
	}

	s.logger.Info("Unavailable date deleted", zap.Int64("unavailable_date_id", id))
	return nil
}

// ListUnavailableDates получает все недоступные дни репетитора
func (s *AvailabilityService) ListUnavailableDates(ctx context.Context, tutorID int64) ([]*model.UnavailableDate, error) {
	dates, err := s.blocked.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, internal("list unavailable dates", err)
	}
	return dates, nil
}
