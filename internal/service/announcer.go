package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/geo"
)

// Announcer озвучивает ближайший отчёт только при смене его идентификатора.
// Пока пользователь остаётся рядом с тем же отчётом, повторных сообщений нет;
// если рядом ничего не осталось, состояние сбрасывается.
type Announcer struct {
	lastID uuid.UUID
}

// Observe возвращает текст сообщения, если его нужно произнести.
func (a *Announcer) Observe(p geo.Proximity, found bool) (string, bool) {
	if !found {
		a.lastID = uuid.Nil
		return "", false
	}
	if p.Alert.ID == a.lastID {
		return "", false
	}
	a.lastID = p.Alert.ID
	return AnnouncementText(p), true
}

// LastID - последний озвученный отчёт.
func (a *Announcer) LastID() uuid.UUID {
	return a.lastID
}

// AnnouncementText: «Precaución, <тип> <подтип> a <N> metros.»
func AnnouncementText(p geo.Proximity) string {
	t, ok := valueobject.LookupAlertType(p.Alert.Type)
	if !ok {
		t, _ = valueobject.LookupAlertType(valueobject.AlertTypePothole)
	}

	parts := []string{t.Label}
	if p.Alert.Subtype != nil && strings.TrimSpace(*p.Alert.Subtype) != "" {
		parts = append(parts, *p.Alert.Subtype)
	}
	return fmt.Sprintf("Precaución, %s a %d metros.", strings.Join(parts, " "), p.Meters())
}
