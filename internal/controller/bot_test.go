package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/auth"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTelegramUsers struct {
	byChat  map[int64]*model.User
	users   map[int64]*model.User
	linkErr error
}

func newFakeTelegramUsers(users ...*model.User) *fakeTelegramUsers {
	f := &fakeTelegramUsers{byChat: map[int64]*model.User{}, users: map[int64]*model.User{}}
	for _, u := range users {
		f.users[u.ID] = u
		if u.TelegramChatID != nil {
			f.byChat[*u.TelegramChatID] = u
		}
	}
	return f
}

func (f *fakeTelegramUsers) GetByTelegramChat(_ context.Context, chatID int64) (*model.User, error) {
	return f.byChat[chatID], nil
}

func (f *fakeTelegramUsers) LinkTelegram(_ context.Context, userID, chatID int64) (*model.User, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, errors.New("user not found")
	}
	user.TelegramChatID = &chatID
	f.byChat[chatID] = user
	return user, nil
}

type fakeSchedule struct {
	sessions []*model.Session
	slots    []*model.AvailabilitySlot
	calls    []string
}

func (f *fakeSchedule) ListSessionsByTutor(_ context.Context, _ model.Actor, _ int64) ([]*model.Session, error) {
	f.calls = append(f.calls, "tutor")
	return f.sessions, nil
}

func (f *fakeSchedule) ListSessionsByChild(_ context.Context, _ model.Actor, _ int64) ([]*model.Session, error) {
	f.calls = append(f.calls, "child")
	return f.sessions, nil
}

func (f *fakeSchedule) ListSessionsByParent(_ context.Context, _ model.Actor, _ int64) ([]*model.Session, error) {
	f.calls = append(f.calls, "parent")
	return f.sessions, nil
}

func (f *fakeSchedule) ListAvailability(_ context.Context, _ model.Actor, _ int64) ([]*model.AvailabilitySlot, error) {
	f.calls = append(f.calls, "availability")
	return f.slots, nil
}

var botNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func setupBotController(users TelegramUsers, schedule ScheduleReader, tokens TokenParser) *BotController {
	c := NewBotController(nil, users, schedule, tokens, time.UTC, zap.NewNop())
	c.now = func() time.Time { return botNow }
	return c
}

func sessionAt(id int64, start time.Time, status model.SessionStatus) *model.Session {
	return &model.Session{
		ID:              id,
		TutorID:         10,
		ChildID:         30,
		Date:            time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		DurationMinutes: 60,
		Status:          status,
	}
}

func TestBotController_StartReply_LinksChat(t *testing.T) {
	manager := auth.NewManager("secret", time.Hour, 15*time.Minute)
	users := newFakeTelegramUsers(&model.User{ID: 20, Role: model.RoleParent, FullName: "Анна"})
	c := setupBotController(users, &fakeSchedule{}, manager)

	token, err := manager.GenerateLinkToken(model.Actor{ID: 20, Role: model.RoleParent})
	require.NoError(t, err)

	reply := c.startReply(context.Background(), 555, "/start "+token)
	assert.Contains(t, reply, "Аккаунт привязан, Анна")

	linked, err := users.GetByTelegramChat(context.Background(), 555)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, int64(20), linked.ID)

	// Повторный /start без токена узнаёт пользователя
	reply = c.startReply(context.Background(), 555, "/start")
	assert.Contains(t, reply, "Привет, Анна")
	assert.Contains(t, reply, "уже привязан")
}

func TestBotController_StartReply_BadTokens(t *testing.T) {
	users := newFakeTelegramUsers(&model.User{ID: 20, Role: model.RoleParent, FullName: "Анна"})
	manager := auth.NewManager("secret", time.Hour, 15*time.Minute)

	expired := auth.NewManager("secret", time.Hour, -time.Minute)
	expiredToken, err := expired.GenerateLinkToken(model.Actor{ID: 20, Role: model.RoleParent})
	require.NoError(t, err)

	accessToken, err := manager.GenerateAccessToken(model.Actor{ID: 20, Role: model.RoleParent})
	require.NoError(t, err)

	foreign := auth.NewManager("other-secret", time.Hour, 15*time.Minute)
	foreignToken, err := foreign.GenerateLinkToken(model.Actor{ID: 20, Role: model.RoleParent})
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "expired", text: "/start " + expiredToken, want: "устарела"},
		{name: "access token", text: "/start " + accessToken, want: "недействительна"},
		{name: "wrong signature", text: "/start " + foreignToken, want: "недействительна"},
		{name: "garbage", text: "/start abc", want: "недействительна"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupBotController(users, &fakeSchedule{}, manager)
			reply := c.startReply(context.Background(), 555, tt.text)
			assert.Contains(t, reply, tt.want)
		})
	}

	linked, err := users.GetByTelegramChat(context.Background(), 555)
	require.NoError(t, err)
	assert.Nil(t, linked)
}

func TestBotController_StartReply_NotLinked(t *testing.T) {
	c := setupBotController(newFakeTelegramUsers(), &fakeSchedule{}, auth.NewManager("secret", time.Hour, time.Minute))

	reply := c.startReply(context.Background(), 555, "/start")
	assert.Contains(t, reply, "ссылку привязки")
}

func TestBotController_StartReply_LinkFailure(t *testing.T) {
	manager := auth.NewManager("secret", time.Hour, 15*time.Minute)
	users := newFakeTelegramUsers(&model.User{ID: 20, Role: model.RoleParent, FullName: "Анна"})
	users.linkErr = errors.New("db down")
	c := setupBotController(users, &fakeSchedule{}, manager)

	token, err := manager.GenerateLinkToken(model.Actor{ID: 20, Role: model.RoleParent})
	require.NoError(t, err)

	reply := c.startReply(context.Background(), 555, "/start "+token)
	assert.Contains(t, reply, "Не удалось привязать")
}

func TestBotController_SessionsReply_NotLinked(t *testing.T) {
	lister := &fakeSchedule{}
	c := setupBotController(newFakeTelegramUsers(), lister, nil)

	reply := c.sessionsReply(context.Background(), 555)
	assert.Contains(t, reply, "не привязан")
	assert.Empty(t, lister.calls)
}

func TestBotController_SessionsReply_ByRole(t *testing.T) {
	chat := int64(555)
	tests := []struct {
		role model.Role
		call string
	}{
		{role: model.RoleTutor, call: "tutor"},
		{role: model.RoleParent, call: "parent"},
		{role: model.RoleChild, call: "child"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			users := newFakeTelegramUsers(&model.User{ID: 7, Role: tt.role, FullName: "Тест", TelegramChatID: &chat})
			lister := &fakeSchedule{}
			c := setupBotController(users, lister, nil)

			reply := c.sessionsReply(context.Background(), chat)
			assert.Contains(t, reply, "Ближайших занятий нет")
			assert.Equal(t, []string{tt.call}, lister.calls)
		})
	}

	users := newFakeTelegramUsers(&model.User{ID: 1, Role: model.RoleAdmin, FullName: "Админ", TelegramChatID: &chat})
	lister := &fakeSchedule{}
	c := setupBotController(users, lister, nil)
	assert.Contains(t, c.sessionsReply(context.Background(), chat), "личном кабинете")
	assert.Empty(t, lister.calls)
}

func TestBotController_SessionsReply_UpcomingOnly(t *testing.T) {
	chat := int64(555)
	users := newFakeTelegramUsers(&model.User{ID: 10, Role: model.RoleTutor, FullName: "Иван", TelegramChatID: &chat})

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	var sessions []*model.Session
	// Занятия приходят от новых к старым
	for i := 12; i >= 1; i-- {
		sessions = append(sessions, sessionAt(int64(i), day.Add(time.Duration(i)*24*time.Hour+10*time.Hour), model.SessionStatusConfirmed))
	}
	sessions = append(sessions,
		sessionAt(100, day.Add(10*time.Hour), model.SessionStatusCancelled),
		sessionAt(101, botNow.Add(-2*time.Hour), model.SessionStatusCompleted),
	)

	c := setupBotController(users, &fakeSchedule{sessions: sessions}, nil)
	reply := c.sessionsReply(context.Background(), chat)

	lines := strings.Split(strings.TrimPrefix(reply, "📅 Ближайшие занятия:\n\n"), "\n")
	require.Len(t, lines, sessionsLimit)
	for i, line := range lines {
		assert.Contains(t, line, fmt.Sprintf("#%d ", i+1))
	}
	assert.NotContains(t, reply, "#100 ")
	assert.NotContains(t, reply, "#101 ")
	assert.NotContains(t, reply, "#11 ")
}

func TestBotController_WeekImage(t *testing.T) {
	chat := int64(555)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	schedule := &fakeSchedule{
		sessions: []*model.Session{sessionAt(1, monday.Add(10*time.Hour), model.SessionStatusConfirmed)},
		slots: []*model.AvailabilitySlot{
			{ID: 1, TutorID: 10, DayOfWeek: model.Monday, StartTime: model.NewTimeOfDay(9, 0), EndTime: model.NewTimeOfDay(12, 0)},
		},
	}

	tutor := newFakeTelegramUsers(&model.User{ID: 10, Role: model.RoleTutor, FullName: "Иван", TelegramChatID: &chat})
	c := setupBotController(tutor, schedule, nil)

	image, caption := c.weekImage(context.Background(), chat)
	require.NotEmpty(t, image)
	assert.Contains(t, caption, "неделю")
	assert.Equal(t, []string{"tutor", "availability"}, schedule.calls)

	// Родителю окна репетитора не нужны
	schedule.calls = nil
	parent := newFakeTelegramUsers(&model.User{ID: 20, Role: model.RoleParent, FullName: "Анна", TelegramChatID: &chat})
	c = setupBotController(parent, schedule, nil)
	image, _ = c.weekImage(context.Background(), chat)
	require.NotEmpty(t, image)
	assert.Equal(t, []string{"parent"}, schedule.calls)

	image, text := setupBotController(newFakeTelegramUsers(), schedule, nil).weekImage(context.Background(), chat)
	assert.Nil(t, image)
	assert.Contains(t, text, "не привязан")
}
