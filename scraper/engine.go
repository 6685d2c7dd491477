package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"carspotter/models"
	"carspotter/utils"
)

// Query is one listing search across a country's marketplace.
type Query struct {
	Country  string
	Brand    string
	Model    string
	MinPrice int
	MaxPrice int
	MinYear  int
	MaxYear  int
}

// Fetcher retrieves a page body for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Repairer is the last-resort extractor used when both parser tiers come
// up empty. It never fails; errors degrade to an empty result.
type Repairer interface {
	Extract(ctx context.Context, html, baseURL string) []models.RawListing
}

// Normalizer maps raw records into canonical listings.
type Normalizer interface {
	Normalize(ctx context.Context, raw []models.RawListing) []*models.Listing
}

// fanoutWorkers bounds the country=all concurrent read path.
const fanoutWorkers = 4

// Engine drives the fetch, parse, repair and normalize chain across the
// registered marketplace sources.
type Engine struct {
	fetcher    Fetcher
	repair     Repairer
	normalizer Normalizer
	sources    []Source
	logger     *utils.Logger
}

// NewEngine wires an Engine over the given sources.
func NewEngine(f Fetcher, r Repairer, n Normalizer, logger *utils.Logger, sources ...Source) *Engine {
	return &Engine{
		fetcher:    f,
		repair:     r,
		normalizer: n,
		sources:    sources,
		logger:     logger,
	}
}

// GetCars runs a search. Country "all" fans out across every source
// concurrently and concatenates whatever succeeds; per-source failures are
// logged and contribute nothing. A single-country query returns the
// source's error so the scan orchestrator can account for it.
func (e *Engine) GetCars(ctx context.Context, q Query) ([]*models.Listing, error) {
	country := strings.ToLower(strings.TrimSpace(q.Country))
	if country == "" || country == "all" {
		return e.getAllCountries(ctx, q), nil
	}

	src := e.sourceFor(country)
	if src == nil {
		e.logger.Warn("[engine] no source registered for country %q", q.Country)
		return []*models.Listing{}, nil
	}

	cars, err := e.scanSource(ctx, src, q)
	if err != nil {
		return nil, err
	}
	return filterListings(cars, q), nil
}

// getAllCountries is the one concurrency-permitted path: a low-volume,
// independent read with no shared rate budget at stake. The scheduled scan
// never goes through here.
func (e *Engine) getAllCountries(ctx context.Context, q Query) []*models.Listing {
	var (
		mu       sync.Mutex
		combined []*models.Listing
	)
	seen := utils.NewURLSet()
	pool := utils.NewWorkerPool(fanoutWorkers)

	for _, src := range e.sources {
		src := src
		pool.Submit(func() {
			cars, err := e.scanSource(ctx, src, q)
			if err != nil {
				e.logger.Warn("[engine] %s scan failed: %v", src.Platform(), err)
				return
			}
			mu.Lock()
			for _, car := range filterListings(cars, q) {
				if seen.Add(car.SourceURL) {
					combined = append(combined, car)
				}
			}
			mu.Unlock()
		})
	}
	pool.Wait()

	if combined == nil {
		combined = []*models.Listing{}
	}
	return combined
}

// scanSource runs the full pipeline for one source: fetch, two-tier parse,
// AI repair if both tiers were empty, then normalization.
func (e *Engine) scanSource(ctx context.Context, src Source, q Query) ([]*models.Listing, error) {
	searchURL := src.SearchURL(q.Brand, q.Model)
	e.logger.Info("[engine] %s: searching %s %s", src.Platform(), orAny(q.Brand), orAny(q.Model))

	html, err := e.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("engine: %s: %w", src.Platform(), err)
	}

	raw := src.Parse(html)
	if len(raw) == 0 {
		e.logger.Warn("[engine] %s: both parser tiers empty, triggering AI repair", src.Platform())
		raw = e.repair.Extract(ctx, html, searchURL)
	}

	for _, r := range raw {
		r["sourcePlatform"] = src.Platform()
		r["country"] = src.Country()
	}

	return e.normalizer.Normalize(ctx, raw), nil
}

func (e *Engine) sourceFor(country string) Source {
	for _, src := range e.sources {
		if strings.EqualFold(src.Country(), country) {
			return src
		}
	}
	return nil
}

// filterListings applies the price/year bounds as a post-filter, after
// normalization has settled the numbers.
func filterListings(cars []*models.Listing, q Query) []*models.Listing {
	out := make([]*models.Listing, 0, len(cars))
	for _, car := range cars {
		if q.MinPrice > 0 && car.PriceEUR < q.MinPrice {
			continue
		}
		if q.MaxPrice > 0 && car.PriceEUR > q.MaxPrice {
			continue
		}
		if q.MinYear > 0 && car.Year < q.MinYear {
			continue
		}
		if q.MaxYear > 0 && car.Year > q.MaxYear {
			continue
		}
		out = append(out, car)
	}
	return out
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
