package service

import (
	"context"
	"testing"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserService_LinkTelegram(t *testing.T) {
	directory := newMockDirectory()
	directory.users[testParentID] = &model.User{ID: testParentID, Role: model.RoleParent, FullName: "Анна"}
	directory.users[otherParentID] = &model.User{ID: otherParentID, Role: model.RoleParent, FullName: "Олег"}
	svc := NewUserService(directory, zap.NewNop())
	ctx := context.Background()

	user, err := svc.LinkTelegram(ctx, testParentID, 777)
	require.NoError(t, err)
	require.NotNil(t, user.TelegramChatID)
	assert.EqualValues(t, 777, *user.TelegramChatID)

	found, err := svc.GetByTelegramChat(ctx, 777)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, testParentID, found.ID)

	// Тот же чат переходит к другому пользователю
	_, err = svc.LinkTelegram(ctx, otherParentID, 777)
	require.NoError(t, err)

	previous, err := svc.GetUser(ctx, testParentID)
	require.NoError(t, err)
	assert.Nil(t, previous.TelegramChatID)

	_, err = svc.LinkTelegram(ctx, 999, 777)
	assert.ErrorIs(t, err, ErrNotFound)

	missing, err := svc.GetByTelegramChat(ctx, 123)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
