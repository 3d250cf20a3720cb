package controller

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/auth"
	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/notify"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Сколько ближайших занятий показывать в /sessions
const sessionsLimit = 10

// TelegramUsers привязка чатов к пользователям
type TelegramUsers interface {
	GetByTelegramChat(ctx context.Context, chatID int64) (*model.User, error)
	LinkTelegram(ctx context.Context, userID, chatID int64) (*model.User, error)
}

// ScheduleReader чтение расписания с проверкой прав участника
type ScheduleReader interface {
	ListSessionsByTutor(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.Session, error)
	ListSessionsByChild(ctx context.Context, actor model.Actor, childID int64) ([]*model.Session, error)
	ListSessionsByParent(ctx context.Context, actor model.Actor, parentID int64) ([]*model.Session, error)
	ListAvailability(ctx context.Context, actor model.Actor, tutorID int64) ([]*model.AvailabilitySlot, error)
}

// TokenParser проверяет токен из deep link
type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

// BotController команды Telegram: привязка аккаунта и просмотр занятий
type BotController struct {
	bot      *bot.Bot
	users    TelegramUsers
	schedule ScheduleReader
	tokens   TokenParser
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users TelegramUsers,
	schedule ScheduleReader,
	tokens TokenParser,
	loc *time.Location,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:      botInstance,
		users:    users,
		schedule: schedule,
		tokens:   tokens,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/sessions", bot.MatchTypeExact, c.handleSessions)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/week", bot.MatchTypeExact, c.handleWeek)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Привязать аккаунт"},
		{Command: "sessions", Description: "📅 Ближайшие занятия"},
		{Command: "week", Description: "🗓 Расписание на неделю"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
}

func (c *BotController) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		c.logger.Warn("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	c.reply(ctx, b, chatID, c.startReply(ctx, chatID, update.Message.Text))
}

func (c *BotController) handleSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	c.reply(ctx, b, chatID, c.sessionsReply(ctx, chatID))
}

func (c *BotController) handleWeek(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	image, text := c.weekImage(ctx, chatID)
	if image == nil {
		c.reply(ctx, b, chatID, text)
		return
	}

	_, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(image)},
		Caption: text,
	})
	if err != nil {
		c.logger.Warn("Failed to send week image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, helpText)
}

const helpText = "📚 Справка по командам:\n\n" +
	"/start - Привязать аккаунт (ссылка из личного кабинета)\n" +
	"/sessions - Ближайшие занятия\n" +
	"/week - Расписание на неделю картинкой\n" +
	"/help - Показать эту справку\n\n" +
	"После привязки сюда будут приходить уведомления о занятиях."

// startReply обрабатывает "/start <token>". Без токена показывает, к кому привязан чат.
func (c *BotController) startReply(ctx context.Context, chatID int64, text string) string {
	token := strings.TrimSpace(strings.TrimPrefix(text, "/start"))

	if token == "" {
		user, err := c.users.GetByTelegramChat(ctx, chatID)
		if err != nil {
			c.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
			return "❌ Произошла ошибка. Попробуйте позже."
		}
		if user == nil {
			return "👋 Привет!\n\nЧтобы получать уведомления о занятиях, откройте ссылку привязки из личного кабинета."
		}
		return "👋 Привет, " + user.FullName + "!\n\nЧат уже привязан. /sessions - ближайшие занятия."
	}

	claims, err := c.tokens.ParseToken(token)
	if err != nil || claims.TokenType != auth.TokenTypeLink {
		if errors.Is(err, auth.ErrTokenExpired) {
			return "⌛ Ссылка устарела. Получите новую в личном кабинете."
		}
		return "❌ Ссылка недействительна."
	}

	user, err := c.users.LinkTelegram(ctx, claims.UserID, chatID)
	if err != nil {
		c.logger.Error("Failed to link telegram chat",
			zap.Int64("user_id", claims.UserID),
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return "❌ Не удалось привязать аккаунт. Попробуйте позже."
	}

	return "✅ Аккаунт привязан, " + user.FullName + "!\n\nСюда будут приходить уведомления о занятиях."
}

// sessionsReply список ближайших занятий пользователя, привязанного к чату
func (c *BotController) sessionsReply(ctx context.Context, chatID int64) string {
	user, err := c.users.GetByTelegramChat(ctx, chatID)
	if err != nil {
		c.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return "❌ Произошла ошибка. Попробуйте позже."
	}
	if user == nil {
		return "Чат не привязан к аккаунту. Используйте ссылку из личного кабинета."
	}

	actor := user.Actor()
	sessions, err := c.sessionsOf(ctx, actor)
	if errors.Is(err, errRoleNotSupported) {
		return roleNotSupportedText
	}
	if err != nil {
		c.logger.Error("Failed to list sessions", zap.Int64("user_id", actor.ID), zap.Error(err))
		return "❌ Не удалось загрузить занятия. Попробуйте позже."
	}

	now := c.now()
	upcoming := make([]*model.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Status != model.SessionStatusCancelled && s.EndTime.After(now) {
			upcoming = append(upcoming, s)
		}
	}
	if len(upcoming) == 0 {
		return "📭 Ближайших занятий нет."
	}

	// Хранилище отдаёт занятия от новых к старым
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].StartTime.Before(upcoming[j].StartTime) })
	if len(upcoming) > sessionsLimit {
		upcoming = upcoming[:sessionsLimit]
	}

	lines := make([]string, len(upcoming))
	for i, s := range upcoming {
		lines[i] = notify.FormatSessionLine(s, c.loc)
	}
	return "📅 Ближайшие занятия:\n\n" + strings.Join(lines, "\n")
}

var errRoleNotSupported = errors.New("role has no personal schedule")

const roleNotSupportedText = "Для этой роли расписание доступно только в личном кабинете."

// sessionsOf занятия участника по его роли
func (c *BotController) sessionsOf(ctx context.Context, actor model.Actor) ([]*model.Session, error) {
	switch actor.Role {
	case model.RoleTutor:
		return c.schedule.ListSessionsByTutor(ctx, actor, actor.ID)
	case model.RoleParent:
		return c.schedule.ListSessionsByParent(ctx, actor, actor.ID)
	case model.RoleChild:
		return c.schedule.ListSessionsByChild(ctx, actor, actor.ID)
	default:
		return nil, errRoleNotSupported
	}
}

// weekImage картинка текущей недели. Репетитору показываются и окна доступности.
// Без картинки возвращается текст ошибки для ответа.
func (c *BotController) weekImage(ctx context.Context, chatID int64) ([]byte, string) {
	user, err := c.users.GetByTelegramChat(ctx, chatID)
	if err != nil {
		c.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil, "❌ Произошла ошибка. Попробуйте позже."
	}
	if user == nil {
		return nil, "Чат не привязан к аккаунту. Используйте ссылку из личного кабинета."
	}

	actor := user.Actor()
	sessions, err := c.sessionsOf(ctx, actor)
	if errors.Is(err, errRoleNotSupported) {
		return nil, roleNotSupportedText
	}
	if err != nil {
		c.logger.Error("Failed to list sessions", zap.Int64("user_id", actor.ID), zap.Error(err))
		return nil, "❌ Не удалось загрузить занятия. Попробуйте позже."
	}

	var slots []*model.AvailabilitySlot
	if actor.Role == model.RoleTutor {
		if slots, err = c.schedule.ListAvailability(ctx, actor, actor.ID); err != nil {
			c.logger.Error("Failed to list availability", zap.Int64("tutor_id", actor.ID), zap.Error(err))
			return nil, "❌ Не удалось загрузить расписание. Попробуйте позже."
		}
	}

	now := c.now()
	image, err := notify.RenderWeek(notify.WeekView{
		Day:      now,
		Slots:    slots,
		Sessions: sessions,
		Now:      now,
		Loc:      c.loc,
	})
	if err != nil {
		c.logger.Error("Failed to render week", zap.Int64("user_id", actor.ID), zap.Error(err))
		return nil, "❌ Не удалось построить расписание."
	}

	return image, "🗓 Расписание на неделю"
}
