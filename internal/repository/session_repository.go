package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `
	id, tutor_id, child_id, subject_id, grade_id, date, start_time, end_time, duration_minutes,
	status, cancelled_by, cancellation_reason, amount, notes, created_at, updated_at`

type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(b *base.Repository) *SessionRepository {
	return &SessionRepository{Repository: b}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		session model.Session
		status  string
	)
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.ChildID,
		&session.SubjectID,
		&session.GradeID,
		&session.Date,
		&session.StartTime,
		&session.EndTime,
		&session.DurationMinutes,
		&status,
		&session.CancelledBy,
		&session.CancellationReason,
		&session.Amount,
		&session.Notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	session.Status = model.SessionStatus(status)
	return &session, nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Create создаёт новое занятие
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (tutor_id, child_id, subject_id, grade_id, date, start_time, end_time,
			duration_minutes, status, amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		session.TutorID,
		session.ChildID,
		session.SubjectID,
		session.GradeID,
		session.Date,
		session.StartTime,
		session.EndTime,
		session.DurationMinutes,
		string(session.Status),
		session.Amount,
		session.Notes,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create session: %w", base.TranslateError(err))
	}

	return nil
}

// GetByID получает занятие по ID, nil если не найдено
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	session, err := scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return session, nil
}

// Update сохраняет время, участников и метаданные занятия. Статус меняется отдельно.
func (r *SessionRepository) Update(ctx context.Context, session *model.Session) error {
	query := `
		UPDATE sessions
		SET tutor_id = $1, subject_id = $2, grade_id = $3, date = $4, start_time = $5, end_time = $6,
			duration_minutes = $7, amount = $8, notes = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		session.TutorID,
		session.SubjectID,
		session.GradeID,
		session.Date,
		session.StartTime,
		session.EndTime,
		session.DurationMinutes,
		session.Amount,
		session.Notes,
		session.ID,
	).Scan(&session.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update session: %w", base.TranslateError(err))
	}

	return nil
}

// UpdateStatus меняет статус, только если текущий статус равен from
func (r *SessionRepository) UpdateStatus(ctx context.Context, id int64, from, to model.SessionStatus) error {
	query := `
		UPDATE sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	affected, err := r.ExecAffected(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update session status: %w", base.TranslateError(err))
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Cancel переводит занятие в CANCELLED, запоминая кто и почему отменил. Строка не удаляется.
func (r *SessionRepository) Cancel(ctx context.Context, id int64, from model.SessionStatus, actorID int64, reason *string) error {
	query := `
		UPDATE sessions
		SET status = 'CANCELLED', cancelled_by = $1, cancellation_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	affected, err := r.ExecAffected(ctx, query, actorID, reason, id, string(from))
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// FindOverlapping ищет неотменённые занятия репетитора в этот день, пересекающиеся с [start, end).
// excludeID = 0 означает "не исключать ничего".
func (r *SessionRepository) FindOverlapping(ctx context.Context, tutorID int64, date, start, end time.Time, excludeID int64) ([]*model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tutor_id = $1
		  AND date = $2::date
		  AND status <> 'CANCELLED'
		  AND start_time < $4
		  AND end_time > $3
		  AND id <> $5
		ORDER BY start_time
	`

	sessions, err := r.list(ctx, query, tutorID, date, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping sessions: %w", err)
	}
	return sessions, nil
}

// ListByTutor получает все занятия репетитора
func (r *SessionRepository) ListByTutor(ctx context.Context, tutorID int64) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tutor_id = $1 ORDER BY start_time DESC`

	sessions, err := r.list(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list sessions by tutor: %w", err)
	}
	return sessions, nil
}

// ListByChild получает все занятия ребёнка
func (r *SessionRepository) ListByChild(ctx context.Context, childID int64) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE child_id = $1 ORDER BY start_time DESC`

	sessions, err := r.list(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("list sessions by child: %w", err)
	}
	return sessions, nil
}

// ListByChildIDs получает занятия нескольких детей (все дети одного родителя)
func (r *SessionRepository) ListByChildIDs(ctx context.Context, childIDs []int64) ([]*model.Session, error) {
	if len(childIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE child_id = ANY($1) ORDER BY start_time DESC`

	sessions, err := r.list(ctx, query, childIDs)
	if err != nil {
		return nil, fmt.Errorf("list sessions by children: %w", err)
	}
	return sessions, nil
}

// ListByDate получает занятия на дату с указанными статусами
func (r *SessionRepository) ListByDate(ctx context.Context, date time.Time, statuses []model.SessionStatus) ([]*model.Session, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE date = $1::date AND status = ANY($2)
		ORDER BY start_time
	`

	sessions, err := r.list(ctx, query, date, names)
	if err != nil {
		return nil, fmt.Errorf("list sessions by date: %w", err)
	}
	return sessions, nil
}
