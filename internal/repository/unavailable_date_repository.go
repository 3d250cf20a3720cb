package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// UnavailableDateRepository хранит дни, когда репетитор недоступен
type UnavailableDateRepository struct {
	*base.Repository
}

func NewUnavailableDateRepository(b *base.Repository) *UnavailableDateRepository {
	return &UnavailableDateRepository{Repository: b}
}

func scanUnavailableDate(row pgx.Row) (*model.UnavailableDate, error) {
	var d model.UnavailableDate
	if err := row.Scan(&d.ID, &d.TutorID, &d.Date, &d.Reason, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *UnavailableDateRepository) list(ctx context.Context, query string, args ...any) ([]*model.UnavailableDate, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []*model.UnavailableDate
	for rows.Next() {
		d, err := scanUnavailableDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unavailable date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Create добавляет недоступный день
func (r *UnavailableDateRepository) Create(ctx context.Context, d *model.UnavailableDate) error {
	query := `
		INSERT INTO unavailable_dates (tutor_id, date, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, d.TutorID, d.Date, d.Reason).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create unavailable date: %w", base.TranslateError(err))
	}
	return nil
}

// GetByID получает запись по ID, nil если не найдена
func (r *UnavailableDateRepository) GetByID(ctx context.Context, id int64) (*model.UnavailableDate, error) {
	query := `SELECT id, tutor_id, date, reason, created_at FROM unavailable_dates WHERE id = $1`

	d, err := scanUnavailableDate(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get unavailable date by id: %w", err)
	}
	return d, nil
}

// ListByTutor получает все недоступные дни репетитора
func (r *UnavailableDateRepository) ListByTutor(ctx context.Context, tutorID int64) ([]*model.UnavailableDate, error) {
	query := `
		SELECT id, tutor_id, date, reason, created_at
		FROM unavailable_dates
		WHERE tutor_id = $1
		ORDER BY date
	`

	dates, err := r.list(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list unavailable dates: %w", err)
	}
	return dates, nil
}

// ListByTutorAndDate получает записи, совпадающие с датой (время не учитывается)
func (r *UnavailableDateRepository) ListByTutorAndDate(ctx context.Context, tutorID int64, date time.Time) ([]*model.UnavailableDate, error) {
	query := `
		SELECT id, tutor_id, date, reason, created_at
		FROM unavailable_dates
		WHERE tutor_id = $1 AND date = $2::date
	`

	dates, err := r.list(ctx, query, tutorID, date)
	if err != nil {
		return nil, fmt.Errorf("list unavailable dates by date: %w", err)
	}
	return dates, nil
}

// Delete удаляет недоступный день
func (r *UnavailableDateRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM unavailable_dates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete unavailable date: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
