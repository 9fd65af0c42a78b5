package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

const ProviderGoogle = "google_directions"

// Google строит маршрут через Directions API.
type Google struct {
	client *maps.Client
}

func NewGoogle(apiKey string, opts ...maps.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google directions: API ключ не задан")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("google directions: %w", err)
	}
	return &Google{client: client}, nil
}

func (g *Google) Route(ctx context.Context, origin, destination valueobject.LatLng) (route *valueobject.Route, err error) {
	started := time.Now()
	defer func() { metrics.ObserveExternal(ProviderGoogle, started, err) }()

	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      latLngParam(origin),
		Destination: latLngParam(destination),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") || strings.Contains(err.Error(), "NOT_FOUND") {
			return nil, nil
		}
		return nil, apperror.Network(err, "сервис маршрутов недоступен")
	}
	if len(routes) == 0 {
		return nil, nil
	}

	best := routes[0]
	decoded, err := best.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("google directions: polyline: %w", err)
	}
	if len(decoded) == 0 {
		return nil, nil
	}

	points := make([]valueobject.LatLng, 0, len(decoded))
	for _, p := range decoded {
		points = append(points, valueobject.LatLng{Lat: p.Lat, Lng: p.Lng})
	}

	out := &valueobject.Route{Points: points, Provider: ProviderGoogle}
	for _, leg := range best.Legs {
		out.DistanceM += float64(leg.Distance.Meters)
		out.DurationS += leg.Duration.Seconds()
	}
	return out, nil
}

func latLngParam(p valueobject.LatLng) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
