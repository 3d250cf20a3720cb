package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// DirectoryRepository читает таблицы платформы (пользователи, дети, каталог предметов).
// Сами таблицы ведут другие сервисы, здесь только проверки принадлежности и существования.
type DirectoryRepository struct {
	*base.Repository
}

func NewDirectoryRepository(b *base.Repository) *DirectoryRepository {
	return &DirectoryRepository{Repository: b}
}

func (r *DirectoryRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := r.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ChildBelongsToParent проверяет что ребёнок принадлежит родителю
func (r *DirectoryRepository) ChildBelongsToParent(ctx context.Context, childID, parentID int64) (bool, error) {
	ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM children WHERE id = $1 AND parent_id = $2)`, childID, parentID)
	if err != nil {
		return false, fmt.Errorf("check child ownership: %w", err)
	}
	return ok, nil
}

// ChildrenOfParent возвращает ID всех детей родителя
func (r *DirectoryRepository) ChildrenOfParent(ctx context.Context, parentID int64) ([]int64, error) {
	rows, err := r.Query(ctx, `SELECT id FROM children WHERE parent_id = $1 ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children of parent: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan child id: %w", err)
	}
	return ids, nil
}

// ParentOfChild возвращает ID родителя ребёнка
func (r *DirectoryRepository) ParentOfChild(ctx context.Context, childID int64) (int64, error) {
	var parentID int64
	err := r.QueryRow(ctx, `SELECT parent_id FROM children WHERE id = $1`, childID).Scan(&parentID)
	if err != nil {
		if base.IsNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get parent of child: %w", err)
	}
	return parentID, nil
}

// TutorExists проверяет что пользователь существует и является репетитором
func (r *DirectoryRepository) TutorExists(ctx context.Context, tutorID int64) (bool, error) {
	ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND role = 'TUTOR')`, tutorID)
	if err != nil {
		return false, fmt.Errorf("check tutor exists: %w", err)
	}
	return ok, nil
}

// SubjectExists проверяет наличие предмета в каталоге
func (r *DirectoryRepository) SubjectExists(ctx context.Context, subjectID int64) (bool, error) {
	ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM subjects WHERE id = $1)`, subjectID)
	if err != nil {
		return false, fmt.Errorf("check subject exists: %w", err)
	}
	return ok, nil
}

// GradeExists проверяет наличие класса (уровня) в каталоге
func (r *DirectoryRepository) GradeExists(ctx context.Context, gradeID int64) (bool, error) {
	ok, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM grades WHERE id = $1)`, gradeID)
	if err != nil {
		return false, fmt.Errorf("check grade exists: %w", err)
	}
	return ok, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user model.User
		role string
	)
	if err := row.Scan(&user.ID, &role, &user.FullName, &user.TelegramChatID, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return &user, nil
}

// GetUser получает пользователя по ID, nil если не найден
func (r *DirectoryRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, role, full_name, telegram_chat_id, created_at FROM users WHERE id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// GetUserByTelegramChat получает пользователя по привязанному чату Telegram
func (r *DirectoryRepository) GetUserByTelegramChat(ctx context.Context, chatID int64) (*model.User, error) {
	query := `SELECT id, role, full_name, telegram_chat_id, created_at FROM users WHERE telegram_chat_id = $1`

	user, err := scanUser(r.QueryRow(ctx, query, chatID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram chat: %w", err)
	}
	return user, nil
}

// LinkTelegramChat привязывает чат Telegram к пользователю. Чат может принадлежать только одному пользователю.
func (r *DirectoryRepository) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.ExecAffected(ctx, `UPDATE users SET telegram_chat_id = NULL WHERE telegram_chat_id = $1`, chatID); err != nil {
			return fmt.Errorf("unlink telegram chat: %w", err)
		}

		affected, err := r.ExecAffected(ctx, `UPDATE users SET telegram_chat_id = $1 WHERE id = $2`, chatID, userID)
		if err != nil {
			return fmt.Errorf("link telegram chat: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
