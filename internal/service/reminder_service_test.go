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

func TestReminderService_SendReminders(t *testing.T) {
	f := setupBookingService(t)
	f.addSlot(t, testTutorID, model.Monday, "09:00", "12:00")
	ctx := context.Background()

	confirmed, err := f.svc.CreateSession(ctx, newRequest(t, nextMonday, "09:00", "10:00"))
	require.NoError(t, err)
	_, err = f.svc.TransitionSession(ctx, confirmed.ID, model.SessionStatusConfirmed)
	require.NoError(t, err)

	// Неподтверждённое занятие напоминание не получает
	_, err = f.svc.CreateSession(ctx, newRequest(t, nextMonday, "10:00", "11:00"))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	reminders := NewReminderService(f.sessions, f.directory, notifier, time.UTC, zap.NewNop())
	reminders.now = func() time.Time { return testNow }

	count, err := reminders.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, []int64{testTutorID, testParentID}, notifier.recipients(EventSessionReminder))
	for _, e := range notifier.sent() {
		assert.Equal(t, confirmed.ID, e.Event.Session.ID)
	}
}

func TestReminderService_NothingTomorrow(t *testing.T) {
	f := setupBookingService(t)

	notifier := &recordingNotifier{}
	reminders := NewReminderService(f.sessions, f.directory, notifier, time.UTC, zap.NewNop())
	reminders.now = func() time.Time { return testNow.AddDate(0, 0, 5) }

	count, err := reminders.SendReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, notifier.sent())
}
