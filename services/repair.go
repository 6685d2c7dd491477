package services

import (
	"context"
	"encoding/json"
	"fmt"

	"carspotter/ai"
	"carspotter/models"
	"carspotter/utils"
)

// htmlSnippetLimit bounds the page prefix sent to the model. The listing
// grid almost always sits inside the first 15k characters.
const htmlSnippetLimit = 15000

// Repairer is the last-resort extractor: when both parser tiers of a
// source produce nothing, the raw HTML goes to the model. Any failure
// (unavailable model, malformed output, parse error) yields an empty
// slice, never an error.
type Repairer struct {
	ai     *ai.Client
	logger *utils.Logger
}

// NewRepairer creates a Repairer.
func NewRepairer(client *ai.Client, logger *utils.Logger) *Repairer {
	return &Repairer{ai: client, logger: logger}
}

// Extract asks the model to pull car listings out of raw HTML.
func (r *Repairer) Extract(ctx context.Context, html, baseURL string) []models.RawListing {
	if !r.ai.Available() {
		r.logger.Debug("[repair] model unavailable, skipping")
		return nil
	}

	r.logger.Info("[repair] AI extraction triggered for %s", baseURL)

	snippet := html
	if len(snippet) > htmlSnippetLimit {
		snippet = snippet[:htmlSnippetLimit]
	}

	prompt := fmt.Sprintf(`You are a web scraping assistant. Extract ALL car listings from the following HTML.
Return a JSON array where each object has these fields (use null if not found):
{
  "price": number (in EUR or local currency),
  "brand": string,
  "model": string,
  "year": number,
  "mileage": number (in km),
  "fuel": string,
  "gearbox": string,
  "location": string,
  "url": string (listing href, make absolute if relative using base: %s),
  "image": string (main image src)
}

HTML:
%s

Return ONLY the raw JSON array, no explanation, no markdown fences.`, baseURL, snippet)

	text, err := r.ai.Generate(ctx, prompt)
	if err != nil {
		r.logger.Warn("[repair] model call failed: %v", err)
		return nil
	}

	var listings []models.RawListing
	if err := json.Unmarshal([]byte(ai.StripFences(text)), &listings); err != nil {
		r.logger.Warn("[repair] unparseable model output: %v", err)
		return nil
	}

	r.logger.Info("[repair] recovered %d listings from %s", len(listings), baseURL)
	return listings
}
