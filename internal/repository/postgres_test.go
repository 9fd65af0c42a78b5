package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	domainrepo "github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

func TestAlertRow_RoundTrip(t *testing.T) {
	author := uuid.New()
	voter := uuid.New()
	subtype := "Grande"
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	alert := &entity.Alert{
		ID:             uuid.New(),
		Type:           valueobject.AlertTypePothole,
		Subtype:        &subtype,
		Location:       valueobject.LatLng{Lat: -3.99313, Lng: -79.20422},
		CreatedBy:      &author,
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		Status:         valueobject.AlertStatusActive,
		Votes:          1,
		PositiveVoters: []uuid.UUID{voter},
		NegativeVoters: []uuid.UUID{},
	}

	row := alertRowFrom(alert)
	assert.True(t, row.Subtype.Valid)
	assert.False(t, row.Description.Valid)
	assert.Equal(t, pq.StringArray{voter.String()}, row.PositiveVoters)

	assert.Equal(t, alert, row.toEntity())
}

func TestAlertRow_AnonymousAuthorAndBadVoters(t *testing.T) {
	row := alertRow{
		ID:             uuid.New(),
		Type:           string(valueobject.AlertTypeAccident),
		Status:         string(valueobject.AlertStatusPending),
		PositiveVoters: pq.StringArray{"not-a-uuid"},
	}
	a := row.toEntity()
	assert.Nil(t, a.CreatedBy)
	assert.Empty(t, a.PositiveVoters)
	assert.NotNil(t, a.NegativeVoters)
}

func TestParseChange(t *testing.T) {
	id := uuid.New()

	ev, ok := parseChange(`{"table":"alerts","op":"delete","id":"` + id.String() + `"}`)
	require.True(t, ok)
	assert.Equal(t, domainrepo.ChangeEvent{Collection: domainrepo.CollectionAlerts, Op: domainrepo.OpDelete, ID: id}, ev)

	_, ok = parseChange(`{"table":"schema_migrations","op":"INSERT","id":"` + id.String() + `"}`)
	assert.False(t, ok)

	_, ok = parseChange(`{"table":"alerts","op":"INSERT","id":"42"}`)
	assert.False(t, ok)

	_, ok = parseChange(`garbage`)
	assert.False(t, ok)
}
