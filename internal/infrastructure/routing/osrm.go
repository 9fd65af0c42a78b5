// Package routing - построение автомобильных маршрутов.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

const ProviderOSRM = "osrm"

// OSRM - маршрутизатор Open Source Routing Machine.
type OSRM struct {
	baseURL string
	client  *http.Client
}

func NewOSRM(baseURL string, timeout time.Duration) *OSRM {
	return &OSRM{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			// GeoJSON: [lng, lat]
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route возвращает (nil, nil), если маршрута между точками нет.
func (o *OSRM) Route(ctx context.Context, origin, destination valueobject.LatLng) (route *valueobject.Route, err error) {
	started := time.Now()
	defer func() { metrics.ObserveExternal(ProviderOSRM, started, err) }()

	endpoint := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		o.baseURL, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, apperror.Network(err, "сервис маршрутов недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperror.Network(fmt.Errorf("osrm: status %d", resp.StatusCode), "сервис маршрутов недоступен")
	}
	// OSRM отвечает 400 с code=NoRoute/NoSegment, если точки не соединяются дорогой.
	// Остальные 4xx (в том числе с HTML вместо JSON) тоже значат, что маршрута нет.
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("osrm: decode: %w", err)
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return nil, nil
	}

	best := body.Routes[0]
	points := make([]valueobject.LatLng, 0, len(best.Geometry.Coordinates))
	for _, c := range best.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		points = append(points, valueobject.LatLng{Lat: c[1], Lng: c[0]})
	}
	if len(points) == 0 {
		return nil, nil
	}

	return &valueobject.Route{
		Points:    points,
		DistanceM: best.Distance,
		DurationS: best.Duration,
		Provider:  ProviderOSRM,
	}, nil
}
