package scraper

import "carspotter/models"

// Source is one marketplace connector. SearchURL builds the listing search
// page for a brand/model filter ("" or "all" mean unfiltered), and Parse
// extracts raw records from a fetched page using the source's two-tier
// strategy: embedded structured data first, pattern extraction second.
// Parse returns whatever fields it can resolve; filling gaps is the
// normalizer's job, not the parser's.
type Source interface {
	Platform() string
	Country() string
	SearchURL(brand, model string) string
	Parse(html string) []models.RawListing
}
