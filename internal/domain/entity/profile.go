package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

// Profile - репутация пользователя.
type Profile struct {
	ID           uuid.UUID
	TrustScore   int
	ReportsCount int
	// Penalties только отображается: ни одно правило движка его не увеличивает.
	Penalties int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfile создаёт профиль со стартовым доверием.
func NewProfile(id uuid.UUID, now time.Time) *Profile {
	return &Profile{
		ID:         id,
		TrustScore: valueobject.InitialTrustScore,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Tier вычисляется при каждом чтении.
func (p *Profile) Tier() valueobject.TrustTier {
	return valueobject.TierFor(p.TrustScore)
}

// CanReport - забаненные пользователи не публикуют отчёты.
func (p *Profile) CanReport() bool {
	return p.Tier() != valueobject.TrustTierBanned
}
