package service

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"go.uber.org/zap"
)

// transitionRoles кто может переводить занятие в статус. Админ может всё.
var transitionRoles = map[model.SessionStatus][]model.Role{
	model.SessionStatusPendingPayment: {model.RoleTutor},
	model.SessionStatusConfirmed:      {model.RoleTutor},
	model.SessionStatusCompleted:      {model.RoleTutor},
	model.SessionStatusMissed:         {model.RoleTutor},
	model.SessionStatusCancelled:      {model.RoleTutor, model.RoleParent, model.RoleChild},
}

// Controller проверяет права участника и передаёт вызов в сервисы расписания
type Controller struct {
	booking      *BookingService
	availability *AvailabilityService
	directory    Directory
	logger       *zap.Logger
}

func NewController(booking *BookingService, availability *AvailabilityService, directory Directory, logger *zap.Logger) *Controller {
	return &Controller{
		booking:      booking,
		availability: availability,
		directory:    directory,
		logger:       logger,
	}
}

// participates проверяет что участник связан с занятием
func (c *Controller) participates(ctx context.Context, actor model.Actor, session *model.Session) (bool, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleTutor:
		return session.TutorID == actor.ID, nil
	case model.RoleChild:
		return session.ChildID == actor.ID, nil
	case model.RoleParent:
		ok, err := c.directory.ChildBelongsToParent(ctx, session.ChildID, actor.ID)
		if err != nil {
			return false, internal("check child ownership", err)
		}
		return ok, nil
	}
	return false, nil
}

func (c *Controller) sessionFor(ctx context.Context, actor model.Actor, id int64) (*model.Session, error) {
	session, err := c.booking.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := c.participates(ctx, actor, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Warn("Session access denied",
			zap.Int64("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
			zap.Int64("session_id", id),
		)
		return nil, forbidden("actor %d has no access to session %d", actor.ID, id)
	}
	return session, nil
}

func requireTutorOrAdmin(actor model.Actor, tutorID int64) error {
	if actor.IsAdmin() || (actor.Role == model.RoleTutor && actor.ID == tutorID) {
		return nil
	}
	return forbidden("actor %d cannot manage tutor %d", actor.ID, tutorID)
}

// CreateSession записывает занятие. Родитель записывает своих детей, админ указывает родителя явно.
func (c *Controller) CreateSession(ctx context.Context, actor model.Actor, req CreateSessionRequest) (*model.Session, error) {
	switch actor.Role {
	case model.RoleParent:
		req.ParentID = actor.ID
	case model.RoleAdmin:
		if req.ParentID == 0 {
			parentID, err := c.directory.ParentOfChild(ctx, req.ChildID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, notFound("child", req.ChildID)
				}
				return nil, internal("resolve parent of child", err)
			}
			req.ParentID = parentID
		}
	default:
		return nil, forbidden("role %s cannot request sessions", actor.Role)
	}

	return c.booking.CreateSession(ctx, &req)
}

func (c *Controller) GetSessionByID(ctx context.Context, actor model.Actor, id int64) (*model.Session, error) {
	return c.sessionFor(ctx, actor, id)
}

func (c *Controller) ListSessionsByTutor(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.Session, error) {
	if err := requireTutorOrAdmin(actor, tutorID); err != nil {
		return nil, err
	}
	return c.booking.ListByTutor(ctx, tutorID)
}

func (c *Controller) ListSessionsByChild(ctx context.Context, actor model.Actor, childID int64) ([]*model.Session, error) {
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleChild:
		if actor.ID != childID {
			return nil, forbidden("child %d cannot view sessions of child %d", actor.ID, childID)
		}
	case model.RoleParent:
		ok, err := c.directory.ChildBelongsToParent(ctx, childID, actor.ID)
		if err != nil {
			return nil, internal("check child ownership", err)
		}
		if !ok {
			return nil, forbidden("child %d does not belong to parent %d", childID, actor.ID)
		}
	default:
		return nil, forbidden("role %s cannot list sessions of a child", actor.Role)
	}
	return c.booking.ListByChild(ctx, childID)
}

func (c *Controller) ListSessionsByParent(ctx context.Context, actor model.Actor, parentID int64) ([]*model.Session, error) {
	if !actor.IsAdmin() && !(actor.Role == model.RoleParent && actor.ID == parentID) {
		return nil, forbidden("actor %d cannot view sessions of parent %d", actor.ID, parentID)
	}
	return c.booking.ListByParent(ctx, parentID)
}

// UpdateSession изменяет занятие. Назначить другого репетитора может только админ.
func (c *Controller) UpdateSession(ctx context.Context, actor model.Actor, id int64, req UpdateSessionRequest) (*model.Session, error) {
	session, err := c.sessionFor(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.TutorID != nil && *req.TutorID != session.TutorID && !actor.IsAdmin() {
		return nil, forbidden("only admin can reassign session %d to another tutor", id)
	}

	return c.booking.UpdateSession(ctx, id, &req)
}

func (c *Controller) CancelSession(ctx context.Context, actor model.Actor, id int64, reason *string) (*model.Session, error) {
	if _, err := c.sessionFor(ctx, actor, id); err != nil {
		return nil, err
	}
	return c.booking.CancelSession(ctx, id, actor.ID, reason)
}

// ChangeStatus переводит занятие в новый статус. Отмена делегируется в CancelSession.
func (c *Controller) ChangeStatus(ctx context.Context, actor model.Actor, id int64, next model.SessionStatus, reason *string) (*model.Session, error) {
	if !next.Valid() {
		return nil, invalidRequest("unknown status %q", next)
	}

	if _, err := c.sessionFor(ctx, actor, id); err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && !roleAllowed(transitionRoles[next], actor.Role) {
		return nil, forbidden("role %s cannot move session to %s", actor.Role, next)
	}

	if next == model.SessionStatusCancelled {
		return c.booking.CancelSession(ctx, id, actor.ID, reason)
	}
	return c.booking.TransitionSession(ctx, id, next)
}

func roleAllowed(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Controller) AddAvailabilitySlot(ctx context.Context, actor model.Actor, tutorID int64, days []model.DayOfWeek, start, end model.TimeOfDay) ([]*model.AvailabilitySlot, error) {
	if err := requireTutorOrAdmin(actor, tutorID); err != nil {
		return nil, err
	}
	return c.availability.AddSlot(ctx, tutorID, days, start, end)
}

func (c *Controller) UpdateAvailabilitySlot(ctx context.Context, actor model.Actor, id int64, changes SlotChanges) (*model.AvailabilitySlot, error) {
	slot, err := c.availability.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTutorOrAdmin(actor, slot.TutorID); err != nil {
		return nil, err
	}
	return c.availability.UpdateSlot(ctx, id, changes)
}

func (c *Controller) DeleteAvailabilitySlot(ctx context.Context, actor model.Actor, id int64) error {
	slot, err := c.availability.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := requireTutorOrAdmin(actor, slot.TutorID); err != nil {
		return err
	}
	return c.availability.DeleteSlot(ctx, id)
}

// ListAvailability доступно любому участнику: родителю нужно видеть окна репетитора
func (c *Controller) ListAvailability(ctx context.Context, _ model.Actor, tutorID int64) ([]*model.AvailabilitySlot, error) {
	return c.availability.ListSlots(ctx, tutorID)
}

func (c *Controller) AddUnavailableDate(ctx context.Context, actor model.Actor, tutorID int64, date time.Time, reason *string) (*model.UnavailableDate, error) {
	if err := requireTutorOrAdmin(actor, tutorID); err != nil {
		return nil, err
	}
	return c.availability.AddUnavailableDate(ctx, tutorID, date, reason)
}

func (c *Controller) DeleteUnavailableDate(ctx context.Context, actor model.Actor, id int64) error {
	blocked, err := c.availability.GetUnavailableDate(ctx, id)
	if err != nil {
		return err
	}
	if err := requireTutorOrAdmin(actor, blocked.TutorID); err != nil {
		return err
	}
	return c.availability.DeleteUnavailableDate(ctx, id)
}

func (c *Controller) ListUnavailableDates(ctx context.Context, _ model.Actor, tutorID int64) ([]*model.UnavailableDate, error) {
	return c.availability.ListUnavailableDates(ctx, tutorID)
}
