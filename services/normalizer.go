package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"carspotter/ai"
	"carspotter/models"
	"carspotter/utils"
)

// maxAIBatch caps how many raw records go into one model call.
const maxAIBatch = 10

// Normalizer maps heterogeneous raw records into canonical listings.
// Primary path is one model call per batch; when the model is unavailable
// or its output does not parse, a deterministic alias-resolver mapping
// takes over. Only the fallback guarantees output length == input length;
// the model may legitimately merge near-duplicates.
type Normalizer struct {
	ai     *ai.Client
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(client *ai.Client, logger *utils.Logger) *Normalizer {
	return &Normalizer{ai: client, logger: logger}
}

// Normalize converts a raw batch into canonical listings. It never fails:
// every error path degrades to the deterministic mapping.
func (n *Normalizer) Normalize(ctx context.Context, raw []models.RawListing) []*models.Listing {
	if len(raw) == 0 {
		return []*models.Listing{}
	}

	if n.ai.Available() {
		if cars, err := n.normalizeWithAI(ctx, raw); err == nil {
			return cars
		} else {
			n.logger.Warn("[normalizer] AI normalization failed, using deterministic fallback: %v", err)
		}
	}

	return n.normalizeDeterministic(raw)
}

func (n *Normalizer) normalizeWithAI(ctx context.Context, raw []models.RawListing) ([]*models.Listing, error) {
	batch := raw
	if len(batch) > maxAIBatch {
		batch = batch[:maxAIBatch]
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("normalizer: marshal batch: %w", err)
	}

	prompt := fmt.Sprintf(`Normalize the following raw car listing data into a strictly standardized JSON array.
Format each object exactly like this:
{
  "id": string (external listing id),
  "sourceUrl": string,
  "sourcePlatform": string,
  "title": string,
  "brand": string,
  "model": string,
  "price_eur": number (integer, in EUR),
  "images": string[] (all image URLs, main image first),
  "year": number,
  "mileage": number (in km),
  "fuel": one of ["Petrol", "Diesel", "Electric", "Hybrid", "Unknown"],
  "gearbox": one of ["Manual", "Automatic", "Unknown"],
  "location": string,
  "country": string
}
Use "Unknown" for unresolvable strings and 0 for unresolvable numbers.

Raw Data: %s

Return ONLY the raw JSON array.`, payload)

	text, err := n.ai.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var cars []*models.Listing
	if err := json.Unmarshal([]byte(ai.StripFences(text)), &cars); err != nil {
		return nil, fmt.Errorf("normalizer: parse model output: %w", err)
	}

	// The model is prompted into the canonical shape but never trusted to
	// honor the invariants.
	for _, car := range cars {
		sanitize(car)
	}
	return cars, nil
}

// normalizeDeterministic is the fallback path: a 1:1 mapping where each
// canonical field is resolved from an ordered list of plausible raw-field
// aliases. Always returns exactly len(raw) records.
func (n *Normalizer) normalizeDeterministic(raw []models.RawListing) []*models.Listing {
	cars := make([]*models.Listing, 0, len(raw))
	for i, r := range raw {
		car := &models.Listing{}

		car.ExternalID, _ = r.String("id", "external_id", "listing_id")
		if car.ExternalID == "" {
			car.ExternalID = fmt.Sprintf("raw-%d", i)
		}
		car.SourceURL, _ = r.String("url", "source_url", "sourceUrl", "href")
		car.SourcePlatform, _ = r.String("sourcePlatform", "source_platform", "provider", "platform")
		car.Title, _ = r.String("title", "name")
		car.Brand, _ = r.String("brand", "make")
		car.Model, _ = r.String("model")
		car.PriceEUR, _ = r.Int("price_eur", "price")
		car.Year, _ = r.Int("year")
		car.Mileage, _ = r.Int("mileage", "km")
		car.Location, _ = r.String("location", "city")
		car.Country, _ = r.String("country")

		if imgs, ok := r.Strings("images", "gallery"); ok {
			car.Images = imgs
		} else if img, ok := r.String("image", "thumbnail"); ok {
			car.Images = []string{img}
		}

		fuel, _ := r.String("fuel", "fuel_type", "fuelType")
		car.Fuel = canonicalFuel(fuel)
		gearbox, _ := r.String("gearbox", "transmission")
		car.Gearbox = canonicalGearbox(gearbox)

		if car.Title == "" {
			car.Title = strings.TrimSpace(car.Brand + " " + car.Model)
		}

		sanitize(car)
		cars = append(cars, car)
	}
	return cars
}

// sanitize enforces the canonical listing invariants: numbers never
// negative, strings never empty (the Unknown sentinel instead of null),
// fuel/gearbox constrained to their enums, images never nil.
func sanitize(car *models.Listing) {
	if car.PriceEUR < 0 {
		car.PriceEUR = 0
	}
	if car.Year < 0 {
		car.Year = 0
	}
	if car.Mileage < 0 {
		car.Mileage = 0
	}
	if car.Images == nil {
		car.Images = []string{}
	}
	for _, field := range []*string{
		&car.ExternalID, &car.SourcePlatform, &car.Title, &car.Brand,
		&car.Model, &car.Location, &car.Country,
	} {
		if strings.TrimSpace(*field) == "" {
			*field = models.Unknown
		}
	}
	car.Fuel = canonicalFuel(car.Fuel)
	car.Gearbox = canonicalGearbox(car.Gearbox)
}

// canonicalFuel maps localized fuel names onto the fuel enum.
func canonicalFuel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "petrol", "gasoline", "benzyna", "benzina", "бензин":
		return models.FuelPetrol
	case "diesel", "motorina", "dizel", "дизел":
		return models.FuelDiesel
	case "electric", "elektryczny", "electrica":
		return models.FuelElectric
	case "hybrid", "hybryda", "hibrid":
		return models.FuelHybrid
	default:
		return models.Unknown
	}
}

// canonicalGearbox maps localized gearbox names onto the gearbox enum.
func canonicalGearbox(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "manuala", "manualna", "ръчна":
		return models.GearboxManual
	case "automatic", "automata", "automatyczna", "автоматична":
		return models.GearboxAutomatic
	default:
		return models.Unknown
	}
}
