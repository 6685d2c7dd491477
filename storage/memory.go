package storage

import (
	"context"
	"sync"
	"time"

	"carspotter/models"
)

// MemoryStore is a thread-safe in-memory Store. It backs local development
// when no Postgres is configured and serves as the test double for the
// spotter and HTTP API tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	listings map[string]*models.Listing // keyed by external_id|source_platform
	subs     map[int64]*models.Subscription
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		listings: make(map[string]*models.Listing),
		subs:     make(map[int64]*models.Subscription),
	}
}

func listingKey(externalID, platform string) string {
	return externalID + "|" + platform
}

// Upsert inserts or updates by (external_id, source_platform). Mirrors the
// Postgres semantics: only a genuine insert reports an id and marks the
// row as a new match.
func (ms *MemoryStore) Upsert(_ context.Context, l *models.Listing) (int64, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := listingKey(l.ExternalID, l.SourcePlatform)
	if existing, ok := ms.listings[key]; ok {
		existing.PriceEUR = l.PriceEUR
		existing.Images = l.Images
		existing.Year = l.Year
		existing.Mileage = l.Mileage
		existing.Fuel = l.Fuel
		existing.Gearbox = l.Gearbox
		existing.Location = l.Location
		return 0, false, nil
	}

	stored := *l
	stored.ID = ms.nextID
	stored.IsNewMatch = true
	stored.CreatedAt = time.Now()
	ms.nextID++
	ms.listings[key] = &stored
	return stored.ID, true, nil
}

// AddSubscription registers a saved search and returns it.
func (ms *MemoryStore) AddSubscription(brand, model string, priceMax int, countries []string) *models.Subscription {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	sub := &models.Subscription{
		ID:        ms.nextID,
		Brand:     brand,
		Model:     model,
		PriceMax:  priceMax,
		Countries: countries,
		Active:    true,
	}
	ms.nextID++
	ms.subs[sub.ID] = sub
	return sub
}

// ActiveSubscriptions returns every active saved search.
func (ms *MemoryStore) ActiveSubscriptions(_ context.Context) ([]*models.Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var subs []*models.Subscription
	for _, sub := range ms.subs {
		if sub.Active {
			copied := *sub
			subs = append(subs, &copied)
		}
	}
	return subs, nil
}

// UpdateLastCheck persists a subscription's scan checkpoint.
func (ms *MemoryStore) UpdateLastCheck(_ context.Context, subID int64, t time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if sub, ok := ms.subs[subID]; ok {
		sub.LastCheck = t
	}
	return nil
}

// CountListings returns the number of stored listings.
func (ms *MemoryStore) CountListings(_ context.Context) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.listings), nil
}

// LatestCheck returns the most recent subscription checkpoint, or nil.
func (ms *MemoryStore) LatestCheck(_ context.Context) (*time.Time, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var latest *time.Time
	for _, sub := range ms.subs {
		if sub.LastCheck.IsZero() {
			continue
		}
		t := sub.LastCheck
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// Get returns a stored listing by natural key, for tests.
func (ms *MemoryStore) Get(externalID, platform string) (*models.Listing, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	l, ok := ms.listings[listingKey(externalID, platform)]
	return l, ok
}

// Subscription returns a subscription by id, for tests.
func (ms *MemoryStore) Subscription(id int64) (*models.Subscription, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	sub, ok := ms.subs[id]
	return sub, ok
}

func (ms *MemoryStore) Close() error { return nil }
