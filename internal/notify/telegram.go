// Package notify доставляет уведомления о занятиях участникам.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// Sender подмножество *bot.Bot, которым пользуется уведомитель
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// UserLookup находит пользователя, чтобы узнать привязанный чат
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// Telegram отправляет уведомления в привязанный чат пользователя.
// Отправка идёт в фоне и не задерживает операцию над расписанием.
type Telegram struct {
	sender Sender
	users  UserLookup
	loc    *time.Location
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewTelegram(sender Sender, users UserLookup, loc *time.Location, logger *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		users:  users,
		loc:    loc,
		logger: logger,
	}
}

// Notify находит чат пользователя и ставит сообщение в отправку.
// Пользователь без привязанного чата пропускается без ошибки.
func (t *Telegram) Notify(ctx context.Context, userID int64, event service.Event) error {
	user, err := t.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user %d: %w", userID, err)
	}
	if user == nil || user.TelegramChatID == nil {
		t.logger.Debug("User has no linked telegram chat", zap.Int64("user_id", userID))
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID: *user.TelegramChatID,
		Text:   FormatEvent(event, t.loc),
	}

	// Запрос мог уже завершиться, сообщение всё равно должно уйти
	sendCtx := context.WithoutCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(sendCtx, sendTimeout)
		defer cancel()

		if _, err := t.sender.SendMessage(ctx, params); err != nil {
			t.logger.Warn("Failed to send telegram notification",
				zap.Int64("user_id", userID),
				zap.String("event", string(event.Type)),
				zap.Int64("session_id", event.Session.ID),
				zap.Error(err),
			)
			return
		}

		t.logger.Debug("Telegram notification sent",
			zap.Int64("user_id", userID),
			zap.String("event", string(event.Type)),
		)
	}()

	return nil
}

// Wait дожидается отправки всех поставленных сообщений
func (t *Telegram) Wait() {
	t.wg.Wait()
}

// Nop отбрасывает уведомления, используется когда бот не настроен
type Nop struct {
	logger *zap.Logger
}

func NewNop(logger *zap.Logger) *Nop {
	return &Nop{logger: logger}
}

func (n *Nop) Notify(_ context.Context, userID int64, event service.Event) error {
	n.logger.Debug("Notification dropped",
		zap.Int64("user_id", userID),
		zap.String("event", string(event.Type)),
	)
	return nil
}
