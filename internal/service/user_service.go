package service

import (
	"context"
	"errors"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository"
	"go.uber.org/zap"
)

type UserService struct {
	users  UserRepository
	logger *zap.Logger
}

func NewUserService(users UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// GetUser получает пользователя по ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, internal("get user", err)
	}
	if user == nil {
		return nil, notFound("user", id)
	}
	return user, nil
}

// GetByTelegramChat получает пользователя, к которому привязан чат. nil если чат не привязан.
func (s *UserService) GetByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := s.users.GetUserByTelegramChat(ctx, chatID)
	if err != nil {
		return nil, internal("get user by telegram chat", err)
	}
	return user, nil
}

// LinkTelegram привязывает чат к пользователю, предыдущая привязка чата снимается
func (s *UserService) LinkTelegram(ctx context.Context, userID, chatID int64) (*model.User, error) {
	if err := s.users.LinkTelegramChat(ctx, userID, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, internal("link telegram chat", err)
	}

	s.logger.Info("Telegram chat linked",
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
	)

	return s.GetUser(ctx, userID)
}
