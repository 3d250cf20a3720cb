package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	"github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, group_id, tutor_id, day_of_week, start_minute, end_minute, created_at, updated_at`

// AvailabilityRepository хранит регулярные слоты доступности репетиторов
type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(b *base.Repository) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: b}
}

func scanSlot(row pgx.Row) (*model.AvailabilitySlot, error) {
	var (
		slot       model.AvailabilitySlot
		day        string
		start, end int
	)
	err := row.Scan(
		&slot.ID,
		&slot.GroupID,
		&slot.TutorID,
		&day,
		&start,
		&end,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	slot.DayOfWeek = model.DayOfWeek(day)
	slot.StartTime = model.TimeOfDay(start)
	slot.EndTime = model.TimeOfDay(end)
	return &slot, nil
}

func (r *AvailabilityRepository) list(ctx context.Context, query string, args ...any) ([]*model.AvailabilitySlot, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []*model.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Create создаёт новый слот
func (r *AvailabilityRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	query := `
		INSERT INTO availability_slots (group_id, tutor_id, day_of_week, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.GroupID,
		slot.TutorID,
		string(slot.DayOfWeek),
		int(slot.StartTime),
		int(slot.EndTime),
	).Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", base.TranslateError(err))
	}

	return nil
}

// GetByID получает слот по ID, nil если не найден
func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*model.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListByTutor получает все слоты репетитора
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID int64) ([]*model.AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE tutor_id = $1
		ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY','SATURDAY','SUNDAY'], day_of_week), start_minute
	`

	slots, err := r.list(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list slots by tutor: %w", err)
	}
	return slots, nil
}

// ListByTutorAndDay получает слоты репетитора на конкретный день недели
func (r *AvailabilityRepository) ListByTutorAndDay(ctx context.Context, tutorID int64, day model.DayOfWeek) ([]*model.AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE tutor_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`

	slots, err := r.list(ctx, query, tutorID, string(day))
	if err != nil {
		return nil, fmt.Errorf("list slots by tutor and day: %w", err)
	}
	return slots, nil
}

// Update обновляет день и время слота
func (r *AvailabilityRepository) Update(ctx context.Context, slot *model.AvailabilitySlot) error {
	query := `
		UPDATE availability_slots
		SET day_of_week = $1, start_minute = $2, end_minute = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`

	err := r.QueryRow(ctx, query, string(slot.DayOfWeek), int(slot.StartTime), int(slot.EndTime), slot.ID).
		Scan(&slot.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update slot: %w", err)
	}

	return nil
}

// Delete удаляет слот
func (r *AvailabilityRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM availability_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
