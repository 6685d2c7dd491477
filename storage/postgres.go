package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"carspotter/models"
	"carspotter/utils"
)

// PostgresStore persists listings and subscriptions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, waits for the database to come up,
// runs schema migrations, and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id              BIGSERIAL PRIMARY KEY,
			external_id     TEXT        NOT NULL,
			source_platform TEXT        NOT NULL,
			source_url      TEXT        NOT NULL DEFAULT '',
			title           TEXT        NOT NULL DEFAULT 'Unknown',
			brand           TEXT        NOT NULL DEFAULT 'Unknown',
			model           TEXT        NOT NULL DEFAULT 'Unknown',
			price_eur       INTEGER     NOT NULL DEFAULT 0 CHECK (price_eur >= 0),
			images          TEXT[]      NOT NULL DEFAULT '{}',
			year            INTEGER     NOT NULL DEFAULT 0 CHECK (year >= 0),
			mileage         INTEGER     NOT NULL DEFAULT 0 CHECK (mileage >= 0),
			fuel            TEXT        NOT NULL DEFAULT 'Unknown',
			gearbox         TEXT        NOT NULL DEFAULT 'Unknown',
			location        TEXT        NOT NULL DEFAULT 'Unknown',
			country         TEXT        NOT NULL DEFAULT 'Unknown',
			is_new_match    BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (external_id, source_platform)
		);

		CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_listings_country    ON listings(country);
		CREATE INDEX IF NOT EXISTS idx_listings_price      ON listings(price_eur);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id         BIGSERIAL PRIMARY KEY,
			brand      TEXT        NOT NULL,
			model      TEXT        NOT NULL DEFAULT 'all',
			price_max  INTEGER     NOT NULL DEFAULT 0,
			countries  TEXT[]      NOT NULL DEFAULT '{}',
			last_check TIMESTAMPTZ,
			active     BOOLEAN     NOT NULL DEFAULT TRUE
		);
	`)
	return err
}

// Upsert inserts the listing or, when the (external_id, source_platform)
// key already exists, refreshes its mutable fields. is_new_match is set on
// genuine inserts only; an ON CONFLICT update deliberately leaves it
// alone so a price refresh never re-triggers a notification. The xmax
// system column distinguishes the two outcomes in one round trip.
func (ps *PostgresStore) Upsert(ctx context.Context, l *models.Listing) (int64, bool, error) {
	var (
		id       int64
		inserted bool
	)
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO listings
			(external_id, source_platform, source_url, title, brand, model,
			 price_eur, images, year, mileage, fuel, gearbox, location, country,
			 is_new_match)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,TRUE)
		ON CONFLICT (external_id, source_platform) DO UPDATE SET
			price_eur = EXCLUDED.price_eur,
			images    = EXCLUDED.images,
			year      = EXCLUDED.year,
			mileage   = EXCLUDED.mileage,
			fuel      = EXCLUDED.fuel,
			gearbox   = EXCLUDED.gearbox,
			location  = EXCLUDED.location
		RETURNING id, (xmax = 0)
	`,
		l.ExternalID, l.SourcePlatform, l.SourceURL, l.Title, l.Brand, l.Model,
		l.PriceEUR, pq.Array(l.Images), l.Year, l.Mileage, l.Fuel, l.Gearbox,
		l.Location, l.Country,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("postgres: upsert listing: %w", err)
	}
	if !inserted {
		return 0, false, nil
	}
	return id, true, nil
}

// ActiveSubscriptions loads every active saved search.
func (ps *PostgresStore) ActiveSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, brand, model, price_max, countries, COALESCE(last_check, 'epoch'::timestamptz), active
		FROM subscriptions
		WHERE active
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub := &models.Subscription{}
		if err := rows.Scan(
			&sub.ID, &sub.Brand, &sub.Model, &sub.PriceMax,
			pq.Array(&sub.Countries), &sub.LastCheck, &sub.Active,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateLastCheck persists a subscription's scan checkpoint.
func (ps *PostgresStore) UpdateLastCheck(ctx context.Context, subID int64, t time.Time) error {
	_, err := ps.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_check = $2 WHERE id = $1`, subID, t)
	if err != nil {
		return fmt.Errorf("postgres: update last_check: %w", err)
	}
	return nil
}

// CountListings returns the number of stored listings.
func (ps *PostgresStore) CountListings(ctx context.Context) (int, error) {
	var count int
	if err := ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count listings: %w", err)
	}
	return count, nil
}

// LatestCheck returns the most recent subscription checkpoint.
func (ps *PostgresStore) LatestCheck(ctx context.Context) (*time.Time, error) {
	var t sql.NullTime
	err := ps.db.QueryRowContext(ctx, `SELECT MAX(last_check) FROM subscriptions`).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest check: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
