package firestoredb

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

// Имена полей те же, что у колонок Postgres.
const (
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
	fieldTrustScore   = "trust_score"
	fieldReportsCount = "reports_count"
)

// alertDoc - документ коллекции alerts.
type alertDoc struct {
	Type           string    `firestore:"type"`
	Subtype        *string   `firestore:"subtype"`
	Description    *string   `firestore:"description"`
	Lat            float64   `firestore:"lat"`
	Lng            float64   `firestore:"lng"`
	Photo          *string   `firestore:"photo"`
	CreatedBy      *string   `firestore:"created_by"`
	CreatedAt      time.Time `firestore:"created_at"`
	ExpiresAt      time.Time `firestore:"expires_at"`
	Status         string    `firestore:"status"`
	Votes          int       `firestore:"votes"`
	PositiveVoters []string  `firestore:"positive_voters"`
	Reports        int       `firestore:"reports"`
	NegativeVoters []string  `firestore:"negative_voters"`
	Rewarded       bool      `firestore:"rewarded"`
}

// profileDoc - документ коллекции profiles, id документа совпадает с id пользователя.
type profileDoc struct {
	TrustScore   int       `firestore:"trust_score"`
	ReportsCount int       `firestore:"reports_count"`
	Penalties    int       `firestore:"penalties"`
	CreatedAt    time.Time `firestore:"created_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

func alertDocFrom(a *entity.Alert) alertDoc {
	doc := alertDoc{
		Type:           string(a.Type),
		Subtype:        a.Subtype,
		Description:    a.Description,
		Lat:            a.Location.Lat,
		Lng:            a.Location.Lng,
		Photo:          a.Photo,
		CreatedAt:      a.CreatedAt.UTC(),
		ExpiresAt:      a.ExpiresAt.UTC(),
		Status:         string(a.Status),
		Votes:          a.Votes,
		PositiveVoters: idsToStrings(a.PositiveVoters),
		Reports:        a.Reports,
		NegativeVoters: idsToStrings(a.NegativeVoters),
		Rewarded:       a.Rewarded,
	}
	if a.CreatedBy != nil {
		s := a.CreatedBy.String()
		doc.CreatedBy = &s
	}
	return doc
}

func (d alertDoc) toEntity(id uuid.UUID) *entity.Alert {
	a := &entity.Alert{
		ID:             id,
		Type:           valueobject.AlertTypeID(d.Type),
		Subtype:        d.Subtype,
		Description:    d.Description,
		Location:       valueobject.LatLng{Lat: d.Lat, Lng: d.Lng},
		Photo:          d.Photo,
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		Status:         valueobject.AlertStatus(d.Status),
		Votes:          d.Votes,
		PositiveVoters: stringsToIDs(d.PositiveVoters),
		Reports:        d.Reports,
		NegativeVoters: stringsToIDs(d.NegativeVoters),
		Rewarded:       d.Rewarded,
	}
	if d.CreatedBy != nil {
		if author, err := uuid.Parse(*d.CreatedBy); err == nil {
			a.CreatedBy = &author
		}
	}
	return a
}

func profileDocFrom(p *entity.Profile) profileDoc {
	return profileDoc{
		TrustScore:   p.TrustScore,
		ReportsCount: p.ReportsCount,
		Penalties:    p.Penalties,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
}

func (d profileDoc) toEntity(id uuid.UUID) *entity.Profile {
	return &entity.Profile{
		ID:           id,
		TrustScore:   d.TrustScore,
		ReportsCount: d.ReportsCount,
		Penalties:    d.Penalties,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func idsToStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func stringsToIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
