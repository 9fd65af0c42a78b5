// Package geocoding - поиск мест по тексту.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

const (
	ProviderNominatim = "nominatim"
	// ResultLimit - сколько вариантов показывать пользователю.
	ResultLimit = 3
	userAgent   = "vialert-loja/1.0"
)

// Nominatim - геокодер OpenStreetMap. Одинаковые запросы, пришедшие одновременно, выполняются один раз.
type Nominatim struct {
	baseURL    string
	citySuffix string
	client     *http.Client
	timeout    time.Duration
	group      singleflight.Group
}

func NewNominatim(baseURL, citySuffix string, timeout time.Duration) *Nominatim {
	return &Nominatim{
		baseURL:    strings.TrimRight(baseURL, "/"),
		citySuffix: citySuffix,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search ищет text в пределах города.
func (n *Nominatim) Search(ctx context.Context, text string) ([]valueobject.Place, error) {
	query := withSuffix(text, n.citySuffix)

	// Общий запрос не зависит от отмены первого вызвавшего: остальные ждущие получат результат.
	ch := n.group.DoChan(query, func() (interface{}, error) {
		shared, cancel := n.sharedContext(ctx)
		defer cancel()

		started := time.Now()
		places, err := n.search(shared, query)
		metrics.ObserveExternal(ProviderNominatim, started, err)
		return places, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Результат общий для всех ждущих: отдаём каждому свою копию.
		return append([]valueobject.Place(nil), res.Val.([]valueobject.Place)...), nil
	}
}

func (n *Nominatim) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if n.timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, n.timeout)
}

func (n *Nominatim) search(ctx context.Context, query string) ([]valueobject.Place, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(ResultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("nominatim: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, apperror.Network(err, "геокодер недоступен")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Network(fmt.Errorf("nominatim: status %d", resp.StatusCode), "геокодер недоступен")
	}

	var raw []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("nominatim: decode: %w", err)
	}

	places := make([]valueobject.Place, 0, len(raw))
	for _, r := range raw {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lng, errLng := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		places = append(places, valueobject.Place{DisplayName: r.DisplayName, Lat: lat, Lng: lng})
		if len(places) == ResultLimit {
			break
		}
	}
	return places, nil
}

func withSuffix(text, suffix string) string {
	text = strings.TrimSpace(text)
	if suffix == "" {
		return text
	}
	return text + " " + suffix
}
