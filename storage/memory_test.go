package storage

import (
	"context"
	"testing"
	"time"

	"carspotter/models"
)

func TestMemoryStoreUpsert(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	car := &models.Listing{
		ExternalID:     "oto-1001",
		SourcePlatform: "Otomoto",
		SourceURL:      "https://www.otomoto.pl/oferta/1001",
		Title:          "BMW 320d",
		PriceEUR:       15500,
		Year:           2019,
		Mileage:        45000,
		Images:         []string{"a.jpg"},
	}

	id, inserted, err := ms.Upsert(ctx, car)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !inserted || id == 0 {
		t.Fatalf("first upsert should insert: id=%d inserted=%v", id, inserted)
	}

	stored, ok := ms.Get("oto-1001", "Otomoto")
	if !ok {
		t.Fatal("listing not found after insert")
	}
	if !stored.IsNewMatch {
		t.Error("inserted listing should be flagged as a new match")
	}
	if stored.CreatedAt.IsZero() {
		t.Error("inserted listing should carry a creation timestamp")
	}

	// Same natural key again, with updated volatile fields.
	update := *car
	update.PriceEUR = 14900
	update.Mileage = 46000
	update.Title = "changed title"
	update.SourceURL = "https://elsewhere.example/1001"

	id2, inserted2, err := ms.Upsert(ctx, &update)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if inserted2 || id2 != 0 {
		t.Fatalf("second upsert must be an update: id=%d inserted=%v", id2, inserted2)
	}

	stored, _ = ms.Get("oto-1001", "Otomoto")
	if stored.PriceEUR != 14900 || stored.Mileage != 46000 {
		t.Errorf("volatile fields not updated: price=%d mileage=%d", stored.PriceEUR, stored.Mileage)
	}
	// Identity fields are immutable on conflict.
	if stored.Title != "BMW 320d" || stored.SourceURL != "https://www.otomoto.pl/oferta/1001" {
		t.Errorf("identity fields must not change on update: %+v", stored)
	}

	if n, _ := ms.CountListings(ctx); n != 1 {
		t.Errorf("CountListings = %d, expected 1", n)
	}

	// Same external id on a different platform is a distinct listing.
	other := *car
	other.SourcePlatform = "Autovit"
	if _, inserted, _ := ms.Upsert(ctx, &other); !inserted {
		t.Error("same external id on another platform should insert")
	}
	if n, _ := ms.CountListings(ctx); n != 2 {
		t.Errorf("CountListings = %d, expected 2", n)
	}
}

func TestMemoryStoreSubscriptions(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	sub := ms.AddSubscription("BMW", "Seria 3", 20000, []string{"poland", "romania"})
	inactive := ms.AddSubscription("Audi", "A4", 15000, []string{"bulgaria"})
	inactive.Active = false

	subs, err := ms.ActiveSubscriptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Brand != "BMW" {
		t.Fatalf("ActiveSubscriptions = %+v, expected only the BMW search", subs)
	}

	if latest, _ := ms.LatestCheck(ctx); latest != nil {
		t.Errorf("LatestCheck before any scan should be nil, got %v", latest)
	}

	mark := time.Now()
	if err := ms.UpdateLastCheck(ctx, sub.ID, mark); err != nil {
		t.Fatal(err)
	}
	latest, _ := ms.LatestCheck(ctx)
	if latest == nil || !latest.Equal(mark) {
		t.Errorf("LatestCheck = %v, expected %v", latest, mark)
	}
}
