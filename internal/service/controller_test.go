package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	adminActor  = model.Actor{ID: 1, Role: model.RoleAdmin}
	tutorActor  = model.Actor{ID: testTutorID, Role: model.RoleTutor}
	otherTutor  = model.Actor{ID: otherTutorID, Role: model.RoleTutor}
	parentActor = model.Actor{ID: testParentID, Role: model.RoleParent}
	otherParent = model.Actor{ID: otherParentID, Role: model.RoleParent}
	childActor  = model.Actor{ID: testChildID, Role: model.RoleChild}
	otherChild  = model.Actor{ID: otherChildID, Role: model.RoleChild}
)

func setupController(t *testing.T) (*Controller, *bookingFixture) {
	t.Helper()

	f := setupBookingService(t)
	availability := NewAvailabilityService(f.tx, f.slots, f.blocked, f.directory, zap.NewNop())
	return NewController(f.svc, availability, f.directory, zap.NewNop()), f
}

func bookAsParent(t *testing.T, c *Controller) *model.Session {
	t.Helper()
	req := newRequest(t, nextMonday, "10:00", "11:00")
	req.ParentID = 0

	session, err := c.CreateSession(context.Background(), parentActor, *req)
	require.NoError(t, err)
	return session
}

func TestController_CreateSession_Roles(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")

	session := bookAsParent(t, c)
	assert.Equal(t, testChildID, session.ChildID)

	// Чужой ребёнок
	req := newRequest(t, nextMonday, "11:00", "12:00")
	_, err := c.CreateSession(context.Background(), otherParent, *req)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = c.CreateSession(context.Background(), tutorActor, *req)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.CreateSession(context.Background(), childActor, *req)
	assert.ErrorIs(t, err, ErrForbidden)

	// Админ может не указывать родителя, он определяется по ребёнку
	req.ParentID = 0
	created, err := c.CreateSession(context.Background(), adminActor, *req)
	require.NoError(t, err)
	assert.Equal(t, testChildID, created.ChildID)

	req = newRequest(t, nextMonday, "09:00", "10:00")
	req.ChildID = 999
	req.ParentID = 0
	_, err = c.CreateSession(context.Background(), adminActor, *req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestController_GetSessionByID_Access(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	session := bookAsParent(t, c)

	for _, actor := range []model.Actor{adminActor, tutorActor, parentActor, childActor} {
		got, err := c.GetSessionByID(context.Background(), actor, session.ID)
		require.NoError(t, err, "actor %+v", actor)
		assert.Equal(t, session.ID, got.ID)
	}

	for _, actor := range []model.Actor{otherTutor, otherParent, otherChild} {
		_, err := c.GetSessionByID(context.Background(), actor, session.ID)
		assert.ErrorIs(t, err, ErrForbidden, "actor %+v", actor)
	}

	_, err := c.GetSessionByID(context.Background(), adminActor, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestController_ListSessions_Access(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	bookAsParent(t, c)
	ctx := context.Background()

	sessions, err := c.ListSessionsByTutor(ctx, tutorActor, testTutorID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	_, err = c.ListSessionsByTutor(ctx, otherTutor, testTutorID)
	assert.ErrorIs(t, err, ErrForbidden)

	sessions, err = c.ListSessionsByChild(ctx, parentActor, testChildID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	sessions, err = c.ListSessionsByChild(ctx, childActor, testChildID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	_, err = c.ListSessionsByChild(ctx, otherParent, testChildID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.ListSessionsByChild(ctx, otherChild, testChildID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.ListSessionsByChild(ctx, tutorActor, testChildID)
	assert.ErrorIs(t, err, ErrForbidden)

	sessions, err = c.ListSessionsByParent(ctx, parentActor, testParentID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	sessions, err = c.ListSessionsByParent(ctx, adminActor, testParentID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	_, err = c.ListSessionsByParent(ctx, otherParent, testParentID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestController_UpdateSession_TutorReassignAdminOnly(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	f.addSlot(t, otherTutorID, model.Monday, "09:00", "12:00")
	session := bookAsParent(t, c)

	tutor := otherTutorID
	_, err := c.UpdateSession(context.Background(), parentActor, session.ID, UpdateSessionRequest{TutorID: &tutor})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = c.UpdateSession(context.Background(), otherParent, session.ID, UpdateSessionRequest{})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := c.UpdateSession(context.Background(), adminActor, session.ID, UpdateSessionRequest{TutorID: &tutor})
	require.NoError(t, err)
	assert.Equal(t, otherTutorID, updated.TutorID)
}

func TestController_ChangeStatus_Roles(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	session := bookAsParent(t, c)
	ctx := context.Background()

	// Подтверждать может только репетитор или админ
	_, err := c.ChangeStatus(ctx, parentActor, session.ID, model.SessionStatusConfirmed, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.ChangeStatus(ctx, childActor, session.ID, model.SessionStatusConfirmed, nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.ChangeStatus(ctx, otherTutor, session.ID, model.SessionStatusConfirmed, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	confirmed, err := c.ChangeStatus(ctx, tutorActor, session.ID, model.SessionStatusConfirmed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusConfirmed, confirmed.Status)

	_, err = c.ChangeStatus(ctx, tutorActor, session.ID, model.SessionStatusRequested, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = c.ChangeStatus(ctx, adminActor, session.ID, model.SessionStatusRequested, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = c.ChangeStatus(ctx, adminActor, session.ID, model.SessionStatus("UNKNOWN"), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	reason := "переезд"
	cancelled, err := c.ChangeStatus(ctx, childActor, session.ID, model.SessionStatusCancelled, &reason)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, testChildID, *cancelled.CancelledBy)
}

func TestController_CancelSession_Access(t *testing.T) {
	c, f := setupController(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	session := bookAsParent(t, c)

	_, err := c.CancelSession(context.Background(), otherParent, session.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := c.CancelSession(context.Background(), parentActor, session.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, cancelled.Status)
}

func TestController_Availability_OwnerOnly(t *testing.T) {
	c, _ := setupController(t)
	ctx := context.Background()
	start, end := model.NewTimeOfDay(9, 0), model.NewTimeOfDay(12, 0)

	_, err := c.AddAvailabilitySlot(ctx, otherTutor, testTutorID, []model.DayOfWeek{model.Monday}, start, end)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = c.AddAvailabilitySlot(ctx, parentActor, testTutorID, []model.DayOfWeek{model.Monday}, start, end)
	assert.ErrorIs(t, err, ErrForbidden)

	slots, err := c.AddAvailabilitySlot(ctx, tutorActor, testTutorID, []model.DayOfWeek{model.Monday, model.Wednesday}, start, end)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	newEnd := model.NewTimeOfDay(13, 0)
	_, err = c.UpdateAvailabilitySlot(ctx, otherTutor, slots[0].ID, SlotChanges{EndTime: &newEnd})
	assert.ErrorIs(t, err, ErrForbidden)
	updated, err := c.UpdateAvailabilitySlot(ctx, adminActor, slots[0].ID, SlotChanges{EndTime: &newEnd})
	require.NoError(t, err)
	assert.Equal(t, newEnd, updated.EndTime)

	assert.ErrorIs(t, c.DeleteAvailabilitySlot(ctx, otherTutor, slots[1].ID), ErrForbidden)
	require.NoError(t, c.DeleteAvailabilitySlot(ctx, tutorActor, slots[1].ID))
	assert.ErrorIs(t, c.DeleteAvailabilitySlot(ctx, tutorActor, slots[1].ID), ErrNotFound)

	// Смотреть окна репетитора может любой участник
	listed, err := c.ListAvailability(ctx, parentActor, testTutorID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestController_UnavailableDates_OwnerOnly(t *testing.T) {
	c, _ := setupController(t)
	ctx := context.Background()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	_, err := c.AddUnavailableDate(ctx, otherTutor, testTutorID, date, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	blocked, err := c.AddUnavailableDate(ctx, tutorActor, testTutorID, date, nil)
	require.NoError(t, err)

	listed, err := c.ListUnavailableDates(ctx, childActor, testTutorID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	assert.ErrorIs(t, c.DeleteUnavailableDate(ctx, parentActor, blocked.ID), ErrForbidden)
	require.NoError(t, c.DeleteUnavailableDate(ctx, adminActor, blocked.ID))
	assert.ErrorIs(t, c.DeleteUnavailableDate(ctx, adminActor, blocked.ID), ErrNotFound)
}
