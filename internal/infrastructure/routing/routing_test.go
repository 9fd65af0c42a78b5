package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

var (
	centro = valueobject.LatLng{Lat: -3.99313, Lng: -79.20422}
	norte  = valueobject.LatLng{Lat: -3.9600, Lng: -79.2200}
)

func TestOSRM_Route(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"distance":4200.5,"duration":610,
			"geometry":{"type":"LineString","coordinates":[[-79.20422,-3.99313],[-79.2100,-3.9800],[-79.2200,-3.9600]]}}]}`))
	}))
	defer srv.Close()

	route, err := NewOSRM(srv.URL, time.Second).Route(context.Background(), centro, norte)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.True(t, strings.HasPrefix(gotPath, "/route/v1/driving/-79.204220,-3.993130;-79.220000,-3.960000"))
	assert.Contains(t, gotQuery, "overview=full")
	assert.Contains(t, gotQuery, "geometries=geojson")

	require.Len(t, route.Points, 3)
	assert.Equal(t, centro, route.Origin())
	assert.Equal(t, norte, route.Destination())
	assert.InDelta(t, 4200.5, route.DistanceM, 1e-9)
	assert.Equal(t, ProviderOSRM, route.Provider)
}

func TestOSRM_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points"}`))
	}))
	defer srv.Close()

	route, err := NewOSRM(srv.URL, time.Second).Route(context.Background(), centro, norte)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestOSRM_ClientErrorsWithoutJSON(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		network bool
	}{
		{"not found page", http.StatusNotFound, false},
		{"bad request page", http.StatusBadRequest, false},
		{"throttled", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`<html><body>nope</body></html>`))
			}))
			defer srv.Close()

			route, err := NewOSRM(srv.URL, time.Second).Route(context.Background(), centro, norte)
			assert.Nil(t, route)
			if tt.network {
				assert.True(t, apperror.IsNetwork(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOSRM_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOSRM(srv.URL, time.Second).Route(context.Background(), centro, norte)
	assert.True(t, apperror.IsNetwork(err))
}

func TestGoogle_Route(t *testing.T) {
	// Полилиния из примера документации Google: (38.5,-120.2) (40.7,-120.95) (43.252,-126.453).
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{
			"overview_polyline":{"points":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
			"legs":[{"distance":{"text":"1 km","value":1000},"duration":{"text":"1 min","value":60}}]
		}]}`))
	}))
	defer srv.Close()

	g, err := NewGoogle("test-key", maps.WithBaseURL(srv.URL))
	require.NoError(t, err)

	route, err := g.Route(context.Background(), centro, norte)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Points, 3)
	assert.InDelta(t, 38.5, route.Points[0].Lat, 1e-5)
	assert.InDelta(t, -126.453, route.Points[2].Lng, 1e-5)
	assert.InDelta(t, 1000, route.DistanceM, 1e-9)
	assert.InDelta(t, 60, route.DurationS, 1e-9)
}
