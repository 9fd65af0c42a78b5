package valueobject

import (
	"time"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// AlertTypeID - идентификатор типа дорожной опасности, как он хранится в базе.
type AlertTypeID string

const (
	AlertTypePothole      AlertTypeID = "bache"
	AlertTypeFault        AlertTypeID = "falla"
	AlertTypeAccident     AlertTypeID = "accidente"
	AlertTypeTrafficCheck AlertTypeID = "control"
)

// Длительности для типов с таймером, минуты.
var AllowedDurations = []int{30, 60, 120}

const (
	DefaultTimedDuration = 60 * time.Minute
	UntimedLifetime      = 24 * time.Hour
)

// AlertType описывает правила одного типа отчёта.
type AlertType struct {
	ID              AlertTypeID `json:"id"`
	Label           string      `json:"label"`
	Color           string      `json:"color"`
	Description     string      `json:"description"`
	Warning         string      `json:"warning,omitempty"`
	Subtypes        []string    `json:"subtypes,omitempty"`
	SubtypeRequired bool        `json:"subtype_required"`
	HasTimer        bool        `json:"has_timer"`
	DeleteThreshold int         `json:"delete_threshold"`
	PhotoRequired   bool        `json:"photo_required"`
}

var alertTypes = []AlertType{
	{
		ID: AlertTypePothole, Label: "Bache / Daño", Color: "#ef4444",
		Description:     "Huecos o alcantarillas sin tapa",
		Subtypes:        []string{"Pequeño", "Grande", "Muy Grande"},
		DeleteThreshold: 2,
	},
	{
		ID: AlertTypeFault, Label: "Falla Geológica", Color: "#eab308",
		Description:     "Hundimientos o grietas",
		Subtypes:        []string{"Desnivel", "Joroba", "Socavón", "Cuarteado", "Pérdida de mesa"},
		SubtypeRequired: true,
		DeleteThreshold: 2,
		PhotoRequired:   true,
	},
	{
		ID: AlertTypeAccident, Label: "Accidente", Color: "#f97316",
		Description:     "Colisiones o averias",
		Warning:         "PRECAUCIÓN",
		DeleteThreshold: 1,
	},
	{
		ID: AlertTypeTrafficCheck, Label: "Control / Agente", Color: "#3b82f6",
		Description:     "Operativos de tránsito",
		HasTimer:        true,
		DeleteThreshold: 1,
	},
}

// AlertTypes возвращает каталог типов в порядке отображения.
func AlertTypes() []AlertType {
	out := make([]AlertType, len(alertTypes))
	copy(out, alertTypes)
	return out
}

// LookupAlertType ищет тип по идентификатору.
func LookupAlertType(id AlertTypeID) (AlertType, bool) {
	for _, t := range alertTypes {
		if t.ID == id {
			return t, true
		}
	}
	return AlertType{}, false
}

// NewAlertTypeID проверяет, что тип известен.
func NewAlertTypeID(raw string) (AlertTypeID, error) {
	id := AlertTypeID(raw)
	if _, ok := LookupAlertType(id); !ok {
		return "", apperror.Validation("неизвестный тип отчёта %q", raw)
	}
	return id, nil
}

// DeleteThresholdFor возвращает порог удаления; для неизвестных типов - 2.
func DeleteThresholdFor(id AlertTypeID) int {
	if t, ok := LookupAlertType(id); ok {
		return t.DeleteThreshold
	}
	return 2
}

// HasSubtype сообщает, входит ли подтип в список типа.
func (t AlertType) HasSubtype(subtype string) bool {
	for _, s := range t.Subtypes {
		if s == subtype {
			return true
		}
	}
	return false
}

// Lifetime вычисляет время жизни отчёта.
// Для типов без таймера выбор пользователя игнорируется.
func (t AlertType) Lifetime(durationMinutes int) (time.Duration, error) {
	if !t.HasTimer {
		return UntimedLifetime, nil
	}
	if durationMinutes == 0 {
		return DefaultTimedDuration, nil
	}
	for _, allowed := range AllowedDurations {
		if durationMinutes == allowed {
			return time.Duration(durationMinutes) * time.Minute, nil
		}
	}
	return 0, apperror.Validation("длительность должна быть одной из %v минут", AllowedDurations)
}
