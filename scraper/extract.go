package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"carspotter/models"
)

// Pattern extraction helpers shared by every source parser. These work on
// the raw page string with no DOM or tokenizer, so they stay usable on the
// half-broken markup anti-bot systems like to serve.

var (
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	entityRe   = regexp.MustCompile(`&[a-z]+;`)
	spaceRe    = regexp.MustCompile(`\s+`)
	nextDataRe = regexp.MustCompile(`(?is)<script id="__NEXT_DATA__"[^>]*>(.*?)</script>`)
	jsonLdRe   = regexp.MustCompile(`(?is)<script id="listing-json-ld"[^>]*>(.*?)</script>`)
	slugRe     = regexp.MustCompile(`\s+`)
)

// stripHTML drops tags, flattens common entities and collapses whitespace.
func stripHTML(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = entityRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// slugify lowercases a brand/model and joins words with dashes, matching
// the URL scheme of the OLX-engine marketplaces.
func slugify(s string) string {
	return slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
}

// absoluteURL resolves href against base when href is relative or
// protocol-relative.
func absoluteURL(href, base string) string {
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	default:
		return strings.TrimRight(base, "/") + href
	}
}

// Tier A: embedded state island.

// nextDataEnvelope mirrors the few levels of the framework state blob we
// actually walk. Each urqlState entry carries its GraphQL payload as a
// JSON-encoded string.
type nextDataEnvelope struct {
	Props struct {
		PageProps struct {
			URQLState map[string]struct {
				Data string `json:"data"`
			} `json:"urqlState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type advertNode struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Price struct {
		Value  float64 `json:"value"`
		Amount float64 `json:"amount"`
		Total  struct {
			Amount float64 `json:"amount"`
		} `json:"total"`
		Currency     string `json:"currency"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"price"`
	Images []struct {
		Src string `json:"src"`
		X1  string `json:"x1"`
		X2  string `json:"x2"`
	} `json:"images"`
	Thumbnail *struct {
		Src string `json:"src"`
		X1  string `json:"x1"`
		X2  string `json:"x2"`
	} `json:"thumbnail"`
	Parameters []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"parameters"`
	Location struct {
		City struct {
			Name string `json:"name"`
		} `json:"city"`
		Region struct {
			Name string `json:"name"`
		} `json:"region"`
	} `json:"location"`
}

type advertSearchPayload struct {
	AdvertSearch         *advertEdges `json:"advertSearch"`
	SearchAdvertisements *advertEdges `json:"searchAdvertisements"`
}

type advertEdges struct {
	Edges []struct {
		Node advertNode `json:"node"`
	} `json:"edges"`
}

// parseNextData extracts listings from the machine-readable state island
// the OLX-engine sites embed in their pages. Returns nil when the island is
// absent or holds no listing collection.
func parseNextData(html string) []models.RawListing {
	m := nextDataRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}

	var env nextDataEnvelope
	if err := json.Unmarshal([]byte(m[1]), &env); err != nil {
		return nil
	}

	for _, entry := range env.Props.PageProps.URQLState {
		if entry.Data == "" {
			continue
		}
		var payload advertSearchPayload
		if err := json.Unmarshal([]byte(entry.Data), &payload); err != nil {
			continue
		}
		search := payload.AdvertSearch
		if search == nil {
			search = payload.SearchAdvertisements
		}
		if search == nil || len(search.Edges) == 0 {
			continue
		}

		out := make([]models.RawListing, 0, len(search.Edges))
		for _, edge := range search.Edges {
			out = append(out, rawFromAdvertNode(edge.Node))
		}
		return out
	}
	return nil
}

func rawFromAdvertNode(node advertNode) models.RawListing {
	// Localized key aliases, tried in priority order.
	param := func(keys ...string) string {
		for _, k := range keys {
			for _, p := range node.Parameters {
				if p.Key == k && p.Value != "" {
					return p.Value
				}
			}
		}
		return ""
	}

	price := node.Price.Value
	if price == 0 {
		price = node.Price.Total.Amount
	}
	if price == 0 {
		price = node.Price.Amount
	}
	currency := node.Price.Currency
	if currency == "" {
		currency = node.Price.CurrencyCode
	}
	if currency == "" {
		currency = "EUR"
	}

	var images []string
	for _, img := range node.Images {
		if src := firstNonEmpty(img.Src, img.X1, img.X2); src != "" {
			images = append(images, src)
		}
	}
	if len(images) == 0 && node.Thumbnail != nil {
		if src := firstNonEmpty(node.Thumbnail.X1, node.Thumbnail.X2, node.Thumbnail.Src); src != "" {
			images = []string{src}
		}
	}

	location := node.Location.City.Name
	if location == "" {
		location = node.Location.Region.Name
	}

	raw := models.RawListing{
		"id":       node.ID,
		"url":      node.URL,
		"title":    node.Title,
		"price":    int(price),
		"currency": currency,
		"images":   images,
		"year":     models.ExtractNumber(param("year", "rok-produkcji")),
		"mileage":  models.ExtractNumber(param("mileage", "przebieg")),
	}
	setIfPresent(raw, "fuel", param("fuel_type", "rodzaj-paliwa"))
	setIfPresent(raw, "gearbox", param("gearbox", "skrzynia-biegow"))
	setIfPresent(raw, "brand", param("make", "marka-pojazdu"))
	setIfPresent(raw, "model", param("model", "model-pojazdu"))
	setIfPresent(raw, "location", location)
	return raw
}

func setIfPresent(raw models.RawListing, key, value string) {
	if value != "" {
		raw[key] = value
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Structured metadata island (JSON-LD).

type ldItem struct {
	ItemOffered struct {
		Name                string `json:"name"`
		Brand               string `json:"brand"`
		FuelType            string `json:"fuelType"`
		MileageFromOdometer struct {
			Value json.Number `json:"value"`
		} `json:"mileageFromOdometer"`
	} `json:"itemOffered"`
	PriceSpecification struct {
		Price json.Number `json:"price"`
	} `json:"priceSpecification"`
}

type ldDocument struct {
	MainEntity struct {
		ItemListElement []ldItem `json:"itemListElement"`
	} `json:"mainEntity"`
}

// parseJSONLD reads the parallel metadata island some sources ship next to
// their listing cards. Matched to cards by title.
func parseJSONLD(html string) []ldItem {
	m := jsonLdRe.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	var doc ldDocument
	if err := json.Unmarshal([]byte(m[1]), &doc); err != nil {
		return nil
	}
	return doc.MainEntity.ItemListElement
}

func findLdByTitle(items []ldItem, title string) *ldItem {
	if title == "" {
		return nil
	}
	for i := range items {
		if strings.TrimSpace(items[i].ItemOffered.Name) == title {
			return &items[i]
		}
	}
	return nil
}
