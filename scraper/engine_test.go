package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"

	"carspotter/models"
	"carspotter/utils"
)

type stubFetcher struct {
	mu   sync.Mutex
	body string
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.body, f.err
}

type stubRepair struct{ calls int }

func (r *stubRepair) Extract(context.Context, string, string) []models.RawListing {
	r.calls++
	return nil
}

// passNormalizer maps the handful of raw fields the engine tests care
// about, without the full alias resolution of the real one.
type passNormalizer struct{}

func (passNormalizer) Normalize(_ context.Context, raw []models.RawListing) []*models.Listing {
	out := make([]*models.Listing, 0, len(raw))
	for _, r := range raw {
		car := &models.Listing{Images: []string{}}
		car.ExternalID, _ = r.String("id")
		car.SourceURL, _ = r.String("url")
		car.SourcePlatform, _ = r.String("sourcePlatform")
		car.Country, _ = r.String("country")
		car.PriceEUR, _ = r.Int("price")
		car.Year, _ = r.Int("year")
		out = append(out, car)
	}
	return out
}

type stubSource struct {
	platform string
	country  string
	raw      []models.RawListing
}

func (s *stubSource) Platform() string { return s.platform }
func (s *stubSource) Country() string  { return s.country }
func (s *stubSource) SearchURL(brand, model string) string {
	return "https://" + s.platform + ".example/search"
}
func (s *stubSource) Parse(string) []models.RawListing { return s.raw }

func rawFixture(id string, price int) models.RawListing {
	return models.RawListing{
		"id":    id,
		"url":   "https://cars.example/" + id,
		"price": price,
	}
}

func newTestEngine(f Fetcher, r Repairer, sources ...Source) *Engine {
	return NewEngine(f, r, passNormalizer{}, utils.NewLogger(), sources...)
}

func TestEngineSingleCountryFilters(t *testing.T) {
	src := &stubSource{platform: "Otomoto", country: "Poland", raw: []models.RawListing{
		rawFixture("1", 10000),
		rawFixture("2", 20000),
		rawFixture("3", 30000),
	}}
	engine := newTestEngine(&stubFetcher{body: "<html>page</html>"}, &stubRepair{}, src)

	cars, err := engine.GetCars(context.Background(), Query{Country: "poland", MaxPrice: 25000})
	if err != nil {
		t.Fatalf("GetCars: %v", err)
	}
	if len(cars) != 2 {
		t.Fatalf("got %d cars, expected 2 under the price ceiling", len(cars))
	}
	for _, car := range cars {
		if car.SourcePlatform != "Otomoto" || car.Country != "Poland" {
			t.Errorf("source tagging missing: %+v", car)
		}
	}
}

func TestEngineUnknownCountry(t *testing.T) {
	engine := newTestEngine(&stubFetcher{}, &stubRepair{},
		&stubSource{platform: "Otomoto", country: "Poland"})

	cars, err := engine.GetCars(context.Background(), Query{Country: "germany"})
	if err != nil {
		t.Fatalf("unknown country must not error: %v", err)
	}
	if len(cars) != 0 {
		t.Errorf("got %d cars, expected none", len(cars))
	}
}

func TestEngineSingleCountryPropagatesFetchError(t *testing.T) {
	engine := newTestEngine(&stubFetcher{err: errors.New("blocked")}, &stubRepair{},
		&stubSource{platform: "Otomoto", country: "Poland"})

	if _, err := engine.GetCars(context.Background(), Query{Country: "poland"}); err == nil {
		t.Fatal("single-country fetch failure should surface to the caller")
	}
}

func TestEngineAllCountriesDeduplicates(t *testing.T) {
	// Both sources emit the same listing URL; the aggregate keeps one.
	engine := newTestEngine(&stubFetcher{body: "page"}, &stubRepair{},
		&stubSource{platform: "Otomoto", country: "Poland", raw: []models.RawListing{rawFixture("dup", 9000), rawFixture("a", 8000)}},
		&stubSource{platform: "Autovit", country: "Romania", raw: []models.RawListing{rawFixture("dup", 9000)}},
	)

	cars, err := engine.GetCars(context.Background(), Query{Country: "all"})
	if err != nil {
		t.Fatalf("GetCars: %v", err)
	}
	if len(cars) != 2 {
		t.Errorf("got %d cars, expected 2 after URL dedup", len(cars))
	}
}

func TestEngineRepairTriggeredOnEmptyParse(t *testing.T) {
	repair := &stubRepair{}
	engine := newTestEngine(&stubFetcher{body: "<html>nothing</html>"}, repair,
		&stubSource{platform: "Otomoto", country: "Poland"})

	cars, err := engine.GetCars(context.Background(), Query{Country: "poland"})
	if err != nil {
		t.Fatalf("GetCars: %v", err)
	}
	if repair.calls != 1 {
		t.Errorf("repair called %d times, expected 1 when both tiers are empty", repair.calls)
	}
	if len(cars) != 0 {
		t.Errorf("got %d cars, expected none", len(cars))
	}
}

func TestEngineRepairNotTriggeredWhenParsed(t *testing.T) {
	repair := &stubRepair{}
	engine := newTestEngine(&stubFetcher{body: "page"}, repair,
		&stubSource{platform: "Otomoto", country: "Poland", raw: []models.RawListing{rawFixture("1", 100)}})

	if _, err := engine.GetCars(context.Background(), Query{Country: "poland"}); err != nil {
		t.Fatal(err)
	}
	if repair.calls != 0 {
		t.Errorf("repair called %d times, expected 0", repair.calls)
	}
}
