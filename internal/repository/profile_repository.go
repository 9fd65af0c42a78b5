package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

const profilesTable = "profiles"

type profileRow struct {
	ID           uuid.UUID `db:"id"`
	TrustScore   int       `db:"trust_score"`
	ReportsCount int       `db:"reports_count"`
	Penalties    int       `db:"penalties"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r *profileRow) toEntity() *entity.Profile {
	return &entity.Profile{
		ID:           r.ID,
		TrustScore:   r.TrustScore,
		ReportsCount: r.ReportsCount,
		Penalties:    r.Penalties,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id uuid.UUID) (*entity.Profile, error) {
	row, err := common.GetByID[profileRow](ctx, r.db, profilesTable, id, apperror.ErrProfileNotFound)
	if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// CreateProfileIfAbsent вставляет профиль, если его ещё нет, и возвращает то, что лежит в базе.
func (r *ProfileRepository) CreateProfileIfAbsent(ctx context.Context, profile *entity.Profile) (*entity.Profile, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, trust_score, reports_count, penalties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, profile.ID, profile.TrustScore, profile.ReportsCount, profile.Penalties, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return nil, common.Classify(fmt.Errorf("create profile: %w", err))
	}
	return r.GetProfile(ctx, profile.ID)
}

// IncrementReportsCount увеличивает счётчик отчётов, создавая профиль при необходимости.
func (r *ProfileRepository) IncrementReportsCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, trust_score, reports_count, penalties, created_at, updated_at)
		VALUES ($1, $2, 1, 0, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			reports_count = profiles.reports_count + 1,
			updated_at = NOW()
	`, id, valueobject.InitialTrustScore)
	if err != nil {
		return common.Classify(fmt.Errorf("increment reports count: %w", err))
	}
	return nil
}
