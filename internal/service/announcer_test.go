package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/geo"
)

func proximityOf(a *entity.Alert, km float64) geo.Proximity {
	return geo.Proximity{Alert: *a, DistanceKm: km}
}

func TestAnnouncementText(t *testing.T) {
	assert.Equal(t, "Precaución, Control / Agente a 250 metros.",
		AnnouncementText(proximityOf(navAlert(0, 0, "control", nil), 0.2504)))
	assert.Equal(t, "Precaución, Falla Geológica Socavón a 5 metros.",
		AnnouncementText(proximityOf(navAlert(0, 0, "falla", strPtr("Socavón")), 0.005)))
	// Неизвестный тип озвучивается как bache.
	assert.Equal(t, "Precaución, Bache / Daño a 1 metros.",
		AnnouncementText(proximityOf(navAlert(0, 0, "ovni", nil), 0.001)))
}

func TestAnnouncer_EdgeTriggered(t *testing.T) {
	var a Announcer
	first := proximityOf(navAlert(0, 0, "bache", nil), 0.3)
	second := proximityOf(navAlert(0, 0, "accidente", nil), 0.1)

	_, speak := a.Observe(first, true)
	assert.True(t, speak)
	_, speak = a.Observe(first, true)
	assert.False(t, speak)

	text, speak := a.Observe(second, true)
	assert.True(t, speak)
	assert.Contains(t, text, "Accidente")
	assert.Equal(t, second.Alert.ID, a.LastID())

	_, speak = a.Observe(geo.Proximity{}, false)
	assert.False(t, speak)
	assert.Equal(t, uuid.Nil, a.LastID())

	_, speak = a.Observe(second, true)
	assert.True(t, speak)
}
