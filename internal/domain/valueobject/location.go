package valueobject

import "github.com/ignatzorin/vialert-backend/internal/pkg/apperror"

// LatLng - точка на карте в градусах.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LojaCenter - начальный центр карты.
var LojaCenter = LatLng{Lat: -3.99313, Lng: -79.20422}

func NewLatLng(lat, lng float64) (LatLng, error) {
	if lat < -90 || lat > 90 {
		return LatLng{}, apperror.Validation("широта вне диапазона: %f", lat)
	}
	if lng < -180 || lng > 180 {
		return LatLng{}, apperror.Validation("долгота вне диапазона: %f", lng)
	}
	return LatLng{Lat: lat, Lng: lng}, nil
}
