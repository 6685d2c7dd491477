package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"carspotter/models"
	"carspotter/scraper"
	"carspotter/storage"
	"carspotter/utils"
)

// ListingSource runs one listing search. Satisfied by *scraper.Engine.
type ListingSource interface {
	GetCars(ctx context.Context, q scraper.Query) ([]*models.Listing, error)
}

// AuditSink receives every listing a scan produced. Optional.
type AuditSink interface {
	Append(listings []*models.Listing) error
}

// Spotter drives the scan: every active subscription × every configured
// country, strictly sequentially, since parallel fetches would defeat the
// anti-detection pacing. Each run is bounded by a wall-clock budget and
// checkpoints per-subscription progress, so interrupted work resumes on
// the next invocation.
type Spotter struct {
	store  storage.Store
	engine ListingSource
	audit  AuditSink
	logger *utils.Logger

	budget   time.Duration
	pauseMin time.Duration
	pauseMax time.Duration
}

// NewSpotter creates a Spotter. audit may be nil.
func NewSpotter(store storage.Store, engine ListingSource, audit AuditSink, logger *utils.Logger,
	budget, pauseMin, pauseMax time.Duration) *Spotter {
	return &Spotter{
		store:    store,
		engine:   engine,
		audit:    audit,
		logger:   logger,
		budget:   budget,
		pauseMin: pauseMin,
		pauseMax: pauseMax,
	}
}

// Run executes one scan. Only the initial subscription read is fatal;
// every per-country failure is logged and counted as zero results.
func (s *Spotter) Run(ctx context.Context) (*models.ScanSummary, error) {
	start := time.Now()

	subs, err := s.store.ActiveSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotter: load subscriptions: %w", err)
	}
	s.logger.Info("[spotter] scan started: %d active subscriptions, budget %v", len(subs), s.budget)

	totalNew := 0
	outOfBudget := false

	for _, sub := range subs {
		for _, country := range sub.Countries {
			if time.Since(start) > s.budget {
				s.logger.Warn("[spotter] budget exceeded (%v), saving progress and stopping", time.Since(start))
				outOfBudget = true
				break
			}

			totalNew += s.scanCountry(ctx, sub, country)

			// Deliberate pause between country requests, budget or not.
			s.pause(ctx)
		}

		// The checkpoint is written whether the country loop completed or
		// was budget-aborted, so the next run knows this subscription was
		// visited.
		if err := s.store.UpdateLastCheck(ctx, sub.ID, time.Now()); err != nil {
			s.logger.Warn("[spotter] checkpoint write failed for subscription %d: %v", sub.ID, err)
		}

		if outOfBudget {
			break
		}
	}

	summary := &models.ScanSummary{NewMatches: totalNew, Elapsed: time.Since(start)}
	s.logger.Info("[spotter] scan complete: %d new matches in %v", summary.NewMatches, summary.Elapsed)
	return summary, nil
}

// scanCountry runs the pipeline for one (subscription, country) pair and
// returns how many genuinely new listings it stored.
func (s *Spotter) scanCountry(ctx context.Context, sub *models.Subscription, country string) int {
	cars, err := s.engine.GetCars(ctx, scraper.Query{
		Country:  country,
		Brand:    sub.Brand,
		Model:    sub.Model,
		MaxPrice: sub.PriceMax,
	})
	if err != nil {
		s.logger.Warn("[spotter] %s scan failed for subscription %d: %v", country, sub.ID, err)
		return 0
	}

	newMatches := 0
	for _, car := range cars {
		_, inserted, err := s.store.Upsert(ctx, car)
		if err != nil {
			s.logger.Warn("[spotter] upsert failed for %s/%s: %v", car.SourcePlatform, car.ExternalID, err)
			continue
		}
		if inserted {
			newMatches++
		}
	}

	if s.audit != nil && len(cars) > 0 {
		if err := s.audit.Append(cars); err != nil {
			s.logger.Warn("[spotter] audit write failed: %v", err)
		}
	}

	s.logger.Info("[spotter] %s: %d listings, %d new (subscription %d)", country, len(cars), newMatches, sub.ID)
	return newMatches
}

func (s *Spotter) pause(ctx context.Context) {
	d := s.pauseMin
	if s.pauseMax > s.pauseMin {
		d += time.Duration(rand.Int63n(int64(s.pauseMax - s.pauseMin)))
	}
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
