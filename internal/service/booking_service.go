package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/interval"
	"github.com/Freeeeeet/tutoring_scheduler/internal/lock"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rescheduleAttempts сколько раз перенос перезахватывает блокировку, если занятие сдвинули параллельно
const rescheduleAttempts = 3

var errLockKeyMoved = errors.New("session moved to another tutor day")

// BookingService решает, можно ли записать занятие, и ведёт записи о занятиях.
//
// Проверка доступности, проверка пересечений и запись выполняются под блокировкой
// (репетитор, дата) и в одной транзакции, поэтому два параллельных запроса на одно
// время не могут пройти оба.
type BookingService struct {
	tx        TxManager
	locker    lock.Locker
	slots     AvailabilityRepository
	blocked   UnavailableDateRepository
	sessions  SessionRepository
	directory Directory
	notifier  Notifier
	validate  *validator.Validate
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger
}

func NewBookingService(
	tx TxManager,
	locker lock.Locker,
	slots AvailabilityRepository,
	blocked UnavailableDateRepository,
	sessions SessionRepository,
	directory Directory,
	notifier Notifier,
	loc *time.Location,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:        tx,
		locker:    locker,
		slots:     slots,
		blocked:   blocked,
		sessions:  sessions,
		directory: directory,
		notifier:  notifier,
		validate:  validator.New(),
		loc:       loc,
		now:       time.Now,
		logger:    logger,
	}
}

// CreateSessionRequest запрос родителя на занятие
type CreateSessionRequest struct {
	ParentID  int64  `validate:"gt=0"`
	TutorID   int64  `validate:"gt=0"`
	ChildID   int64  `validate:"gt=0"`
	SubjectID int64  `validate:"gt=0"`
	GradeID   *int64 `validate:"omitempty,gt=0"`
	Date      time.Time
	StartTime model.TimeOfDay
	EndTime   model.TimeOfDay
	Amount    decimal.Decimal
	Notes     *string `validate:"omitempty,max=2000"`
}

// UpdateSessionRequest частичное изменение занятия, nil означает "не менять".
// Смена репетитора, даты или времени проходит те же проверки, что и создание.
type UpdateSessionRequest struct {
	TutorID   *int64 `validate:"omitempty,gt=0"`
	SubjectID *int64 `validate:"omitempty,gt=0"`
	GradeID   *int64 `validate:"omitempty,gt=0"`
	Date      *time.Time
	StartTime *model.TimeOfDay
	EndTime   *model.TimeOfDay
	Amount    *decimal.Decimal
	Notes     *string `validate:"omitempty,max=2000"`
}

func (r *UpdateSessionRequest) reschedules() bool {
	return r.TutorID != nil || r.Date != nil || r.StartTime != nil || r.EndTime != nil
}

func (s *BookingService) validateStruct(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invalidRequest("field %s failed %q check", verrs[0].Field(), verrs[0].Tag())
		}
		return invalidRequest("%v", err)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return invalidRequest("amount must not be negative")
	}
	return nil
}

// resolveInterval проверяет дату и время и переводит их в моменты в локации сервиса
func (s *BookingService) resolveInterval(date time.Time, start, end model.TimeOfDay) (time.Time, time.Time, time.Time, error) {
	if date.IsZero() {
		return time.Time{}, time.Time{}, time.Time{}, invalidRequest("date is required")
	}
	if err := validateRange(start, end); err != nil {
		return time.Time{}, time.Time{}, time.Time{}, err
	}

	now := s.now().In(s.loc)
	day := dateOnly(date)
	if day.Before(dateOnly(now)) {
		return time.Time{}, time.Time{}, time.Time{}, invalidRequest("date %s is in the past", day.Format(time.DateOnly))
	}

	startAt := start.On(day, s.loc)
	endAt := end.On(day, s.loc)
	if startAt.Before(now) {
		return time.Time{}, time.Time{}, time.Time{}, invalidRequest("session start %s is in the past", startAt.Format(time.RFC3339))
	}

	return day, startAt, endAt, nil
}

// timesOfDay восстанавливает время суток занятия
func (s *BookingService) timesOfDay(session *model.Session) (model.TimeOfDay, model.TimeOfDay) {
	start := model.TimeOfDayOf(session.StartTime.In(s.loc))
	return start, start + model.TimeOfDay(session.DurationMinutes)
}

func (s *BookingService) checkReferences(ctx context.Context, tutorID, subjectID *int64, gradeID *int64) error {
	if tutorID != nil {
		ok, err := s.directory.TutorExists(ctx, *tutorID)
		if err != nil {
			return internal("check tutor", err)
		}
		if !ok {
			return notFound("tutor", *tutorID)
		}
	}

	if subjectID != nil {
		ok, err := s.directory.SubjectExists(ctx, *subjectID)
		if err != nil {
			return internal("check subject", err)
		}
		if !ok {
			return notFound("subject", *subjectID)
		}
	}

	if gradeID != nil {
		ok, err := s.directory.GradeExists(ctx, *gradeID)
		if err != nil {
			return internal("check grade", err)
		}
		if !ok {
			return notFound("grade", *gradeID)
		}
	}

	return nil
}

// IsTutorAvailable проверяет что [start, end) в дату date покрыт одним из регулярных слотов
// и день не закрыт целиком.
func (s *BookingService) IsTutorAvailable(ctx context.Context, tutorID int64, date time.Time, start, end model.TimeOfDay) error {
	day := dateOnly(date)
	unavailable := &UnavailableError{
		TutorID:   tutorID,
		Date:      day,
		StartTime: start,
		EndTime:   end,
	}

	blocked, err := s.blocked.ListByTutorAndDate(ctx, tutorID, day)
	if err != nil {
		return internal("list unavailable dates", err)
	}
	if len(blocked) > 0 {
		unavailable.Reason = ReasonDateBlocked
		unavailable.BlockReason = blocked[0].Reason
		return unavailable
	}

	slots, err := s.slots.ListByTutorAndDay(ctx, tutorID, model.DayOfWeekOf(day))
	if err != nil {
		return internal("list slots", err)
	}
	if len(slots) == 0 {
		unavailable.Reason = ReasonNoSlotsOnDay
		return unavailable
	}

	for _, slot := range slots {
		if interval.ContainsTimeOfDay(slot.StartTime, slot.EndTime, start, end) {
			return nil
		}
	}

	unavailable.Reason = ReasonOutsideOfSlots
	unavailable.Slots = slots
	return unavailable
}

func (s *BookingService) checkConflicts(ctx context.Context, tutorID int64, date, start, end time.Time, excludeID int64) error {
	found, err := s.sessions.FindOverlapping(ctx, tutorID, date, start, end, excludeID)
	if err != nil {
		return internal("find overlapping sessions", err)
	}
	if len(found) == 0 {
		return nil
	}

	ids := make([]int64, len(found))
	for i, session := range found {
		ids[i] = session.ID
	}
	return &ConflictError{TutorID: tutorID, StartTime: start, EndTime: end, SessionIDs: ids}
}

// translateWriteError переводит ошибки записи занятия в бизнес-ошибки
func translateWriteError(op string, session *model.Session, err error) error {
	switch {
	case errors.Is(err, repository.ErrOverlap):
		return &ConflictError{TutorID: session.TutorID, StartTime: session.StartTime, EndTime: session.EndTime}
	case errors.Is(err, repository.ErrReference):
		return invalidRequest("session references a missing record")
	case errors.Is(err, repository.ErrNotFound):
		return notFound("session", session.ID)
	}
	return internal(op, err)
}

// withConflictIDs дополняет конфликт, пойманный ограничением базы, номерами пересекающихся занятий.
// Транзакция к этому моменту откатана, поэтому поиск идёт по ctx без неё.
func (s *BookingService) withConflictIDs(ctx context.Context, err error, date time.Time, excludeID int64) error {
	var conflict *ConflictError
	if !errors.As(err, &conflict) || len(conflict.SessionIDs) > 0 {
		return err
	}

	found, findErr := s.sessions.FindOverlapping(ctx, conflict.TutorID, date, conflict.StartTime, conflict.EndTime, excludeID)
	if findErr != nil {
		s.logger.Warn("Failed to look up conflicting sessions", zap.Error(findErr))
		return err
	}
	for _, session := range found {
		conflict.SessionIDs = append(conflict.SessionIDs, session.ID)
	}
	return err
}

func (s *BookingService) lockTutorDay(ctx context.Context, tutorID int64, date time.Time) (func(), error) {
	unlock, err := s.locker.Lock(ctx, lock.TutorDayKey(tutorID, date))
	if err != nil {
		return nil, internal("acquire schedule lock", err)
	}
	return unlock, nil
}

// CreateSession принимает или отклоняет запрос на занятие
func (s *BookingService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.Session, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	owns, err := s.directory.ChildBelongsToParent(ctx, req.ChildID, req.ParentID)
	if err != nil {
		return nil, internal("check child ownership", err)
	}
	if !owns {
		return nil, forbidden("child %d does not belong to parent %d", req.ChildID, req.ParentID)
	}

	if err := s.checkReferences(ctx, &req.TutorID, &req.SubjectID, req.GradeID); err != nil {
		return nil, err
	}

	date, startAt, endAt, err := s.resolveInterval(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockTutorDay(ctx, req.TutorID, date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session := &model.Session{
		TutorID:         req.TutorID,
		ChildID:         req.ChildID,
		SubjectID:       req.SubjectID,
		GradeID:         req.GradeID,
		Date:            date,
		StartTime:       startAt,
		EndTime:         endAt,
		DurationMinutes: int(req.EndTime - req.StartTime),
		Status:          model.SessionStatusRequested,
		Amount:          req.Amount,
		Notes:           req.Notes,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.IsTutorAvailable(ctx, req.TutorID, date, req.StartTime, req.EndTime); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, req.TutorID, date, startAt, endAt, 0); err != nil {
			return err
		}
		if err := s.sessions.Create(ctx, session); err != nil {
			return translateWriteError("create session", session, err)
		}
		return nil
	})
	if err != nil {
		err = s.withConflictIDs(ctx, err, date, 0)
		s.logger.Info("Session request rejected",
			zap.Int64("tutor_id", req.TutorID),
			zap.Int64("child_id", req.ChildID),
			zap.Time("start_time", startAt),
			zap.Time("end_time", endAt),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Session requested",
		zap.Int64("session_id", session.ID),
		zap.Int64("tutor_id", session.TutorID),
		zap.Int64("child_id", session.ChildID),
		zap.Time("start_time", session.StartTime),
		zap.Time("end_time", session.EndTime),
	)

	s.notify(ctx, session.TutorID, EventSessionRequested, session)

	return session, nil
}

// GetSession получает занятие по ID
func (s *BookingService) GetSession(ctx context.Context, id int64) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, internal("get session", err)
	}
	if session == nil {
		return nil, notFound("session", id)
	}
	return session, nil
}

// applyUpdate вычисляет итоговые поля занятия: переданные значения перекрывают текущие
func (s *BookingService) applyUpdate(current *model.Session, req *UpdateSessionRequest) (*model.Session, model.TimeOfDay, model.TimeOfDay) {
	next := *current
	start, end := s.timesOfDay(current)

	if req.TutorID != nil {
		next.TutorID = *req.TutorID
	}
	if req.Date != nil {
		next.Date = dateOnly(*req.Date)
	}
	if req.StartTime != nil {
		// Без нового конца занятие сдвигается целиком
		end = *req.StartTime + (end - start)
		start = *req.StartTime
	}
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if req.SubjectID != nil {
		next.SubjectID = *req.SubjectID
	}
	if req.GradeID != nil {
		next.GradeID = req.GradeID
	}
	if req.Amount != nil {
		next.Amount = *req.Amount
	}
	if req.Notes != nil {
		next.Notes = req.Notes
	}

	return &next, start, end
}

func requireMutable(session *model.Session) error {
	if session.Status.Terminal() {
		return fmt.Errorf("%w: session %d is %s", ErrInvalidTransition, session.ID, session.Status)
	}
	return nil
}

// UpdateSession меняет занятие. Перенос проверяется на доступность и пересечения,
// само занятие при этом в пересечениях не учитывается.
func (s *BookingService) UpdateSession(ctx context.Context, id int64, req *UpdateSessionRequest) (*model.Session, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
	}

	existing, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireMutable(existing); err != nil {
		return nil, err
	}

	if err := s.checkReferences(ctx, req.TutorID, req.SubjectID, req.GradeID); err != nil {
		return nil, err
	}

	if !req.reschedules() {
		next, _, _ := s.applyUpdate(existing, req)
		if err := s.sessions.Update(ctx, next); err != nil {
			return nil, translateWriteError("update session", next, err)
		}

		s.logger.Info("Session updated", zap.Int64("session_id", id))
		return next, nil
	}

	var updated *model.Session
	for attempt := 1; ; attempt++ {
		updated, err = s.reschedule(ctx, id, existing, req)
		if !errors.Is(err, errLockKeyMoved) {
			break
		}
		if attempt == rescheduleAttempts {
			return nil, fmt.Errorf("%w: session %d keeps moving concurrently", ErrSchedulingConflict, id)
		}

		s.logger.Debug("Session moved while waiting for lock, retrying",
			zap.Int64("session_id", id),
			zap.Int("attempt", attempt),
		)
		if existing, err = s.GetSession(ctx, id); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session rescheduled",
		zap.Int64("session_id", id),
		zap.Int64("tutor_id", updated.TutorID),
		zap.Time("start_time", updated.StartTime),
		zap.Time("end_time", updated.EndTime),
	)

	s.notify(ctx, updated.TutorID, EventSessionRescheduled, updated)
	if existing.TutorID != updated.TutorID {
		s.notify(ctx, existing.TutorID, EventSessionRescheduled, updated)
	}
	s.notifyParent(ctx, EventSessionRescheduled, updated)

	return updated, nil
}

// reschedule переносит занятие под блокировкой (репетитор, дата), вычисленной по base.
// Если после перечитывания занятие попадает на другой ключ, возвращает errLockKeyMoved.
func (s *BookingService) reschedule(ctx context.Context, id int64, base *model.Session, req *UpdateSessionRequest) (*model.Session, error) {
	target, start, end := s.applyUpdate(base, req)
	date, _, _, err := s.resolveInterval(target.Date, start, end)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockTutorDay(ctx, target.TutorID, date)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *model.Session
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Перечитываем под блокировкой: занятие могли отменить или перенести параллельно
		current, err := s.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if err := requireMutable(current); err != nil {
			return err
		}

		next, start, end := s.applyUpdate(current, req)
		day, startAt, endAt, err := s.resolveInterval(next.Date, start, end)
		if err != nil {
			return err
		}
		if next.TutorID != target.TutorID || !day.Equal(date) {
			return errLockKeyMoved
		}
		next.Date = day
		next.StartTime = startAt
		next.EndTime = endAt
		next.DurationMinutes = int(end - start)

		if err := s.IsTutorAvailable(ctx, next.TutorID, day, start, end); err != nil {
			return err
		}
		if err := s.checkConflicts(ctx, next.TutorID, day, startAt, endAt, id); err != nil {
			return err
		}
		if err := s.sessions.Update(ctx, next); err != nil {
			return translateWriteError("update session", next, err)
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, s.withConflictIDs(ctx, err, date, id)
	}
	return updated, nil
}

// CancelSession отменяет занятие. Запись остаётся в истории, время освобождается сразу.
func (s *BookingService) CancelSession(ctx context.Context, id, actorID int64, reason *string) (*model.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if !session.Status.CanTransitionTo(model.SessionStatusCancelled) {
		return nil, invalidTransition(session.Status, model.SessionStatusCancelled)
	}

	if err := s.sessions.Cancel(ctx, id, session.Status, actorID, reason); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Статус успели изменить между чтением и записью
			return nil, fmt.Errorf("%w: session %d changed concurrently", ErrInvalidTransition, id)
		}
		return nil, internal("cancel session", err)
	}

	session.Status = model.SessionStatusCancelled
	session.CancelledBy = &actorID
	session.CancellationReason = reason
	session.UpdatedAt = s.now()

	s.logger.Info("Session cancelled",
		zap.Int64("session_id", id),
		zap.Int64("cancelled_by", actorID),
	)

	if session.TutorID != actorID {
		s.notify(ctx, session.TutorID, EventSessionCancelled, session)
	}
	s.notifyParentExcept(ctx, EventSessionCancelled, session, actorID)

	return session, nil
}

// TransitionSession переводит занятие в новый статус по таблице переходов.
// Отмена идёт через CancelSession, потому что требует автора и причину.
func (s *BookingService) TransitionSession(ctx context.Context, id int64, next model.SessionStatus) (*model.Session, error) {
	if !next.Valid() {
		return nil, invalidRequest("unknown status %q", next)
	}
	if next == model.SessionStatusCancelled {
		return nil, invalidRequest("use cancel to cancel a session")
	}

	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	from := session.Status
	if !from.CanTransitionTo(next) {
		return nil, invalidTransition(from, next)
	}

	if err := s.sessions.UpdateStatus(ctx, id, from, next); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: session %d changed concurrently", ErrInvalidTransition, id)
		}
		return nil, internal("update session status", err)
	}

	session.Status = next
	session.UpdatedAt = s.now()

	s.logger.Info("Session status changed",
		zap.Int64("session_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)

	s.notifyParent(ctx, EventSessionStatusChanged, session)

	return session, nil
}

// ListByTutor получает все занятия репетитора
func (s *BookingService) ListByTutor(ctx context.Context, tutorID int64) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, internal("list sessions by tutor", err)
	}
	return sessions, nil
}

// ListByChild получает все занятия ребёнка
func (s *BookingService) ListByChild(ctx context.Context, childID int64) ([]*model.Session, error) {
	sessions, err := s.sessions.ListByChild(ctx, childID)
	if err != nil {
		return nil, internal("list sessions by child", err)
	}
	return sessions, nil
}

// ListByParent получает занятия всех детей родителя
func (s *BookingService) ListByParent(ctx context.Context, parentID int64) ([]*model.Session, error) {
	childIDs, err := s.directory.ChildrenOfParent(ctx, parentID)
	if err != nil {
		return nil, internal("list children of parent", err)
	}

	sessions, err := s.sessions.ListByChildIDs(ctx, childIDs)
	if err != nil {
		return nil, internal("list sessions by parent", err)
	}
	return sessions, nil
}

func (s *BookingService) notify(ctx context.Context, userID int64, eventType EventType, session *model.Session) {
	if err := s.notifier.Notify(ctx, userID, Event{Type: eventType, Session: session}); err != nil {
		s.logger.Warn("Failed to notify user",
			zap.Int64("user_id", userID),
			zap.String("event", string(eventType)),
			zap.Int64("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (s *BookingService) notifyParent(ctx context.Context, eventType EventType, session *model.Session) {
	s.notifyParentExcept(ctx, eventType, session, 0)
}

func (s *BookingService) notifyParentExcept(ctx context.Context, eventType EventType, session *model.Session, exceptID int64) {
	parentID, err := s.directory.ParentOfChild(ctx, session.ChildID)
	if err != nil {
		s.logger.Warn("Failed to resolve parent for notification",
			zap.Int64("child_id", session.ChildID),
			zap.Error(err),
		)
		return
	}
	if parentID != exceptID {
		s.notify(ctx, parentID, eventType, session)
	}
}
