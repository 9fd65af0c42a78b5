package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// Alert - отчёт о дорожной опасности.
type Alert struct {
	ID             uuid.UUID
	Type           valueobject.AlertTypeID
	Subtype        *string
	Description    *string
	Location       valueobject.LatLng
	Photo          *string
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Status         valueobject.AlertStatus
	Votes          int
	PositiveVoters []uuid.UUID
	Reports        int
	NegativeVoters []uuid.UUID
	Rewarded       bool
}

// NewAlertParams - данные формы отчёта.
type NewAlertParams struct {
	Type            string
	Subtype         *string
	Description     *string
	Location        valueobject.LatLng
	DurationMinutes int
	Photo           *string
	AuthorID        *uuid.UUID
	AuthorScore     int
}

// NewAlert проверяет форму и собирает новый отчёт.
// Забаненный автор сюда не доходит: его отсекает сервис.
func NewAlert(p NewAlertParams, now time.Time) (*Alert, error) {
	typeID, err := valueobject.NewAlertTypeID(p.Type)
	if err != nil {
		return nil, err
	}
	alertType, _ := valueobject.LookupAlertType(typeID)

	if _, err := valueobject.NewLatLng(p.Location.Lat, p.Location.Lng); err != nil {
		return nil, err
	}

	subtype := trimmedOrNil(p.Subtype)
	if subtype == nil && alertType.SubtypeRequired {
		return nil, apperror.Validation("для типа %q нужно выбрать подтип", alertType.Label)
	}
	if subtype != nil && !alertType.HasSubtype(*subtype) {
		return nil, apperror.Validation("подтип %q не относится к типу %q", *subtype, alertType.Label)
	}

	photo := trimmedOrNil(p.Photo)
	if photo == nil && alertType.PhotoRequired {
		return nil, apperror.Validation("для типа %q фото обязательно", alertType.Label)
	}

	lifetime, err := alertType.Lifetime(p.DurationMinutes)
	if err != nil {
		return nil, err
	}

	return &Alert{
		Type:           typeID,
		Subtype:        subtype,
		Description:    trimmedOrNil(p.Description),
		Location:       p.Location,
		Photo:          photo,
		CreatedBy:      p.AuthorID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(lifetime),
		Status:         valueobject.InitialStatusFor(p.AuthorScore),
		PositiveVoters: []uuid.UUID{},
		NegativeVoters: []uuid.UUID{},
	}, nil
}

// VoteResult описывает, что изменил голос.
type VoteResult struct {
	Applied bool `json:"applied"`
	// Promoted - отчёт только что набрал порог и автору положена награда.
	Promoted    bool       `json:"promoted"`
	RewardTo    *uuid.UUID `json:"-"`
	RewardDelta int        `json:"-"`
}

// Confirm учитывает подтверждение. Повторный голос того же пользователя ничего не меняет.
func (a *Alert) Confirm(voterID uuid.UUID) VoteResult {
	if containsID(a.PositiveVoters, voterID) {
		return VoteResult{}
	}

	a.PositiveVoters = append(a.PositiveVoters, voterID)
	a.Votes++
	a.Status = valueobject.AlertStatusActive

	res := VoteResult{Applied: true}
	if a.Votes >= valueobject.PromotionVotes && !a.Rewarded {
		a.Rewarded = true
		res.Promoted = true
		if a.CreatedBy != nil {
			creator := *a.CreatedBy
			res.RewardTo = &creator
			res.RewardDelta = valueobject.PromotionReward
		}
	}
	return res
}

// Dispute учитывает жалобу «не существует». Повтор игнорируется.
func (a *Alert) Dispute(voterID uuid.UUID) VoteResult {
	if containsID(a.NegativeVoters, voterID) {
		return VoteResult{}
	}
	a.NegativeVoters = append(a.NegativeVoters, voterID)
	a.Reports++
	return VoteResult{Applied: true}
}

// IsExpired: expiresAt ≤ now.
func (a *Alert) IsExpired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// DeleteThreshold - сколько жалоб удаляет отчёт этого типа.
func (a *Alert) DeleteThreshold() int {
	return valueobject.DeleteThresholdFor(a.Type)
}

// OverDisputed сообщает, что жалоб набралось на удаление.
func (a *Alert) OverDisputed() bool {
	return a.Reports >= a.DeleteThreshold()
}

func (a *Alert) IsPending() bool {
	return a.Status == valueobject.AlertStatusPending
}

// Clone возвращает глубокую копию (хранилища не должны делиться срезами).
func (a *Alert) Clone() *Alert {
	c := *a
	c.PositiveVoters = append([]uuid.UUID(nil), a.PositiveVoters...)
	c.NegativeVoters = append([]uuid.UUID(nil), a.NegativeVoters...)
	if a.Subtype != nil {
		s := *a.Subtype
		c.Subtype = &s
	}
	if a.Description != nil {
		d := *a.Description
		c.Description = &d
	}
	if a.Photo != nil {
		p := *a.Photo
		c.Photo = &p
	}
	if a.CreatedBy != nil {
		id := *a.CreatedBy
		c.CreatedBy = &id
	}
	return &c
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
