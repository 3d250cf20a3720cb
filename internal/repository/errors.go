package repository

import "github.com/Freeeeeet/tutoring_scheduler/internal/repository/base"

// Ошибки, которые сервисы сравнивают через errors.Is
var (
	ErrNotFound  = base.ErrNotFound
	ErrOverlap   = base.ErrOverlap
	ErrReference = base.ErrReference
)
