// Package geo содержит геометрию на сфере: расстояния, ближайший отчёт и пересечение с маршрутом.
package geo

import (
	"math"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

const (
	EarthRadiusKm = 6371.0

	// ProximityRadiusKm - отчёты ближе этого расстояния озвучиваются.
	ProximityRadiusKm = 1.0
	// RouteCorridorKm - отчёт считается на маршруте, если точка маршрута ближе 50 м.
	RouteCorridorKm = 0.05
	// RouteSampleStep - проверяем только каждую пятую точку полилинии.
	RouteSampleStep = 5
)

// DistanceKm - расстояние по большому кругу (формула гаверсинусов).
func DistanceKm(a, b valueobject.LatLng) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Proximity - ближайший отчёт и расстояние до него.
type Proximity struct {
	Alert      entity.Alert
	DistanceKm float64
}

// Meters округляет расстояние до метров.
func (p Proximity) Meters() int {
	return int(math.Round(p.DistanceKm * 1000))
}

// Nearest возвращает ближайший отчёт строго ближе ProximityRadiusKm.
func Nearest(user valueobject.LatLng, alerts []entity.Alert) (Proximity, bool) {
	best := Proximity{DistanceKm: ProximityRadiusKm}
	found := false
	for _, a := range alerts {
		d := DistanceKm(user, a.Location)
		if d < best.DistanceKm {
			best = Proximity{Alert: a, DistanceKm: d}
			found = true
		}
	}
	return best, found
}

// IsOnRoute проверяет каждую RouteSampleStep-ю точку маршрута.
// Это приближение: отчёт между выборочными точками может быть пропущен.
func IsOnRoute(alert entity.Alert, route []valueobject.LatLng) bool {
	for i := 0; i < len(route); i += RouteSampleStep {
		if DistanceKm(alert.Location, route[i]) < RouteCorridorKm {
			return true
		}
	}
	return false
}

// CountOnRoute считает отчёты на маршруте.
func CountOnRoute(route []valueobject.LatLng, alerts []entity.Alert) int {
	count := 0
	for _, a := range alerts {
		if IsOnRoute(a, route) {
			count++
		}
	}
	return count
}
