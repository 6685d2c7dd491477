package storage

import (
	"context"
	"time"

	"carspotter/models"
)

// Store is the narrow persistence contract the pipeline needs: upsert
// listings by natural identity, read subscriptions, checkpoint scan
// progress, and answer the two stats queries.
type Store interface {
	// Upsert inserts or updates a listing keyed on
	// (external_id, source_platform). inserted is true only for genuine
	// inserts; updates refresh the mutable fields and return the
	// existing row untouched in its identity.
	Upsert(ctx context.Context, l *models.Listing) (id int64, inserted bool, err error)

	// ActiveSubscriptions returns every subscription the spotter should
	// scan.
	ActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error)

	// UpdateLastCheck persists a subscription's scan checkpoint.
	UpdateLastCheck(ctx context.Context, subID int64, t time.Time) error

	// CountListings returns the total number of stored listings.
	CountListings(ctx context.Context) (int, error)

	// LatestCheck returns the most recent subscription checkpoint, or nil
	// when no scan has ever run.
	LatestCheck(ctx context.Context) (*time.Time, error)

	Close() error
}
