package valueobject

// Place - результат геокодирования.
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

func (p Place) Point() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// Route - построенный маршрут. Точки идут от начала к концу.
type Route struct {
	Points    []LatLng `json:"points"`
	DistanceM float64  `json:"distance_m"`
	DurationS float64  `json:"duration_s"`
	Provider  string   `json:"provider"`
}

func (r Route) Origin() LatLng {
	if len(r.Points) == 0 {
		return LatLng{}
	}
	return r.Points[0]
}

func (r Route) Destination() LatLng {
	if len(r.Points) == 0 {
		return LatLng{}
	}
	return r.Points[len(r.Points)-1]
}
