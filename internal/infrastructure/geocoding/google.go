package geocoding

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

const ProviderGoogle = "google_geocode"

// Google - геокодер Google Maps, используется при наличии API ключа.
type Google struct {
	client     *maps.Client
	citySuffix string
}

// NewGoogle создаёт геокодер; opts позволяют подменить адрес API в тестах.
func NewGoogle(apiKey, citySuffix string, opts ...maps.ClientOption) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google geocoder: API ключ не задан")
	}
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("google geocoder: %w", err)
	}
	return &Google{client: client, citySuffix: citySuffix}, nil
}

func (g *Google) Search(ctx context.Context, text string) (places []valueobject.Place, err error) {
	started := time.Now()
	defer func() { metrics.ObserveExternal(ProviderGoogle, started, err) }()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: withSuffix(text, g.citySuffix),
		Region:  "ec",
	})
	if err != nil {
		if IsZeroResults(err) {
			return []valueobject.Place{}, nil
		}
		return nil, apperror.Network(err, "геокодер недоступен")
	}

	places = make([]valueobject.Place, 0, ResultLimit)
	for _, r := range results {
		places = append(places, valueobject.Place{
			DisplayName: r.FormattedAddress,
			Lat:         r.Geometry.Location.Lat,
			Lng:         r.Geometry.Location.Lng,
		})
		if len(places) == ResultLimit {
			break
		}
	}
	return places, nil
}

// IsZeroResults - API ответил, но ничего не нашёл.
func IsZeroResults(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ZERO_RESULTS")
}
