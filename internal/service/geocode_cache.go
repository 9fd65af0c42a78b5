package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
)

// GeocodeCache хранит результаты поиска мест с TTL.
// Ошибки не кэшируются, пустой результат кэшируется.
type GeocodeCache struct {
	next Geocoder
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	places    []valueobject.Place
	expiresAt time.Time
}

var _ Geocoder = (*GeocodeCache)(nil)

func NewGeocodeCache(next Geocoder, ttl time.Duration) *GeocodeCache {
	return &GeocodeCache{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

func (c *GeocodeCache) Search(ctx context.Context, text string) ([]valueobject.Place, error) {
	key := cacheKey(text)
	if places, ok := c.get(key); ok {
		return places, nil
	}

	places, err := c.next.Search(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{places: clonePlaces(places), expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return places, nil
}

func (c *GeocodeCache) get(key string) ([]valueobject.Place, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return clonePlaces(entry.places), true
}

// Run периодически удаляет истёкшие записи до отмены ctx.
func (c *GeocodeCache) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *GeocodeCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len - число записей, включая ещё не удалённые истёкшие.
func (c *GeocodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func clonePlaces(places []valueobject.Place) []valueobject.Place {
	out := make([]valueobject.Place, len(places))
	copy(out, places)
	return out
}
