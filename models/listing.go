package models

import "time"

// Fuel and gearbox values the system standardizes on. Anything the
// normalizer cannot resolve falls back to Unknown.
const (
	FuelPetrol   = "Petrol"
	FuelDiesel   = "Diesel"
	FuelElectric = "Electric"
	FuelHybrid   = "Hybrid"

	GearboxManual    = "Manual"
	GearboxAutomatic = "Automatic"

	Unknown = "Unknown"
)

// Listing is the canonical vehicle record shared by the scraper, the store
// and the HTTP API. Uniqueness is enforced on (ExternalID, SourcePlatform).
// String fields are never empty (unresolved values hold the Unknown
// sentinel) and numeric fields are never negative.
type Listing struct {
	ID             int64     `json:"-"`
	ExternalID     string    `json:"id"`
	SourcePlatform string    `json:"sourcePlatform"`
	SourceURL      string    `json:"sourceUrl"`
	Title          string    `json:"title"`
	Brand          string    `json:"brand"`
	Model          string    `json:"model"`
	PriceEUR       int       `json:"price_eur"`
	Images         []string  `json:"images"`
	Year           int       `json:"year"`
	Mileage        int       `json:"mileage"`
	Fuel           string    `json:"fuel"`
	Gearbox        string    `json:"gearbox"`
	Location       string    `json:"location"`
	Country        string    `json:"country"`
	IsNewMatch     bool      `json:"isNewMatch,omitempty"`
	CreatedAt      time.Time `json:"-"`
}

// Subscription is a saved search re-executed by the spotter on every scan.
// Model may be "all" to match any model of the brand.
type Subscription struct {
	ID        int64
	Brand     string
	Model     string
	PriceMax  int
	Countries []string
	LastCheck time.Time
	Active    bool
}

// ScanSummary reports the outcome of one spotter run.
type ScanSummary struct {
	NewMatches int
	Elapsed    time.Duration
}

// Stats is the payload of the /stats endpoint.
type Stats struct {
	TotalListings int        `json:"totalListings"`
	LastPulse     *time.Time `json:"lastPulse"`
	SystemStatus  string     `json:"systemStatus"`
}
