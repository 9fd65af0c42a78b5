package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
)

// Коллекции хранилища.
const (
	CollectionAlerts   = "alerts"
	CollectionProfiles = "profiles"
)

// Операции в уведомлениях об изменениях.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent - уведомление о том, что документ изменился.
type ChangeEvent struct {
	Collection string
	Op         string
	ID         uuid.UUID
}

// VoteMutation меняет отчёт внутри транзакции хранилища.
type VoteMutation func(alert *entity.Alert) entity.VoteResult

// AlertRepository - отчёты.
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *entity.Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*entity.Alert, error)
	ListAlerts(ctx context.Context) ([]*entity.Alert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error

	// ApplyVote атомарно читает отчёт, применяет mutate и сохраняет результат.
	// Если голос принёс награду, в той же транзакции начисляется доверие автору.
	ApplyVote(ctx context.Context, id uuid.UUID, mutate VoteMutation) (entity.VoteResult, error)
}

// ProfileRepository - профили доверия.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*entity.Profile, error)
	// CreateProfileIfAbsent возвращает существующий профиль или сохраняет переданный.
	CreateProfileIfAbsent(ctx context.Context, profile *entity.Profile) (*entity.Profile, error)
	IncrementReportsCount(ctx context.Context, id uuid.UUID) error
}

// Store - всё, что движку нужно от хранилища.
type Store interface {
	AlertRepository
	ProfileRepository

	// Subscribe отдаёт уведомления об изменениях до отмены ctx.
	Subscribe(ctx context.Context) <-chan ChangeEvent
	Ping(ctx context.Context) error
	Close() error
}
