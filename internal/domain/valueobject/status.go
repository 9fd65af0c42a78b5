package valueobject

import "github.com/ignatzorin/vialert-backend/internal/pkg/apperror"

type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusActive  AlertStatus = "active"
)

func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusPending, AlertStatusActive:
		return true
	}
	return false
}

// CanTransitionTo разрешает только pending → active; обратного пути нет.
func (s AlertStatus) CanTransitionTo(newStatus AlertStatus) bool {
	if s == newStatus {
		return true
	}
	return s == AlertStatusPending && newStatus == AlertStatusActive
}

func NewAlertStatus(status string) (AlertStatus, error) {
	s := AlertStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус отчёта")
	}
	return s, nil
}

// TrustTier - уровень доверия, вычисляется из trust score и никогда не хранится.
type TrustTier string

const (
	TrustTierBanned      TrustTier = "BANNED"
	TrustTierObservation TrustTier = "OBSERVATION"
	TrustTierActive      TrustTier = "ACTIVE"
)

const (
	InitialTrustScore  = 100
	ObservationCeiling = 50
	PromotionVotes     = 3
	PromotionReward    = 5
)

// TierFor определяет уровень по баллам: ≤0 BANNED, 1–50 OBSERVATION, ≥51 ACTIVE.
func TierFor(score int) TrustTier {
	switch {
	case score <= 0:
		return TrustTierBanned
	case score <= ObservationCeiling:
		return TrustTierObservation
	default:
		return TrustTierActive
	}
}

// Label - подпись уровня для клиента.
func (t TrustTier) Label() string {
	switch t {
	case TrustTierBanned:
		return "BLOQUEADO"
	case TrustTierObservation:
		return "EN OBSERVACIÓN"
	default:
		return "ACTIVO"
	}
}

// InitialStatusFor: автор с баллом > 50 публикует сразу, остальные - на проверку.
func InitialStatusFor(score int) AlertStatus {
	if score > ObservationCeiling {
		return AlertStatusActive
	}
	return AlertStatusPending
}
