package scraper

import (
	"regexp"
	"strings"

	"carspotter/models"
)

// Otomoto and Autovit run the same OLX-group frontend, so they share one
// parser parameterized on host, URL scheme and accepted currencies.

var (
	articleRe = regexp.MustCompile(`(?is)<article[^>]*data-id="([^"]+)"[^>]*>(.*?)</article>`)
	imageRe   = regexp.MustCompile(`(?i)src="(https?://[^"]+(?:image|jpg|jpeg|webp|png)[^"]*)"`)
	h2Re      = regexp.MustCompile(`(?is)<h2[^>]*>(.*?)</h2>`)
	titleARe  = regexp.MustCompile(`(?is)<a[^>]*class="[^"]*offer-title[^"]*"[^>]*>(.*?)</a>`)
	yearRe    = regexp.MustCompile(`\b(20[0-2][0-9]|19[89][0-9])\b`)
	eurAttrRe = regexp.MustCompile(`(?i)data-price-eur="([\d.]+)"`)
	mileageRe = regexp.MustCompile(`(?i)([\d\s]{3,9})\s*km`)
)

type olxSource struct {
	platform     string
	country      string
	baseURL      string
	searchPath   string
	idPrefix     string
	hrefAbsRe    *regexp.Regexp // absolute listing links on this host
	hrefRelRe    *regexp.Regexp // relative detail-page links
	priceTextRe  *regexp.Regexp // amount + local currency marker
}

// NewOtomoto returns the Polish Otomoto connector. baseURL overrides the
// production host (used by tests); pass "" for the default.
func NewOtomoto(baseURL string) Source {
	if baseURL == "" {
		baseURL = "https://www.otomoto.pl"
	}
	return &olxSource{
		platform:    "Otomoto",
		country:     "Poland",
		baseURL:     strings.TrimRight(baseURL, "/"),
		searchPath:  "/osobowe",
		idPrefix:    "oto",
		hrefAbsRe:   regexp.MustCompile(`(?i)href="(https?://[^"]*otomoto[^"]+)"`),
		hrefRelRe:   regexp.MustCompile(`(?i)href="(/oferta[^"]+)"`),
		priceTextRe: regexp.MustCompile(`(?i)(\d[\d\s]{2,8})\s*(?:EUR|PLN|zł)`),
	}
}

// NewAutovit returns the Romanian Autovit connector.
func NewAutovit(baseURL string) Source {
	if baseURL == "" {
		baseURL = "https://www.autovit.ro"
	}
	return &olxSource{
		platform:    "Autovit",
		country:     "Romania",
		baseURL:     strings.TrimRight(baseURL, "/"),
		searchPath:  "/autoturisme",
		idPrefix:    "avit",
		hrefAbsRe:   regexp.MustCompile(`(?i)href="(https?://[^"]*autovit[^"]+)"`),
		hrefRelRe:   regexp.MustCompile(`(?i)href="(/anunt[^"]+)"`),
		priceTextRe: regexp.MustCompile(`(?i)(\d[\d\s]{2,8})\s*(?:EUR|RON|€)`),
	}
}

func (s *olxSource) Platform() string { return s.platform }
func (s *olxSource) Country() string  { return s.country }

func (s *olxSource) SearchURL(brand, model string) string {
	segments := make([]string, 0, 2)
	for _, part := range []string{brand, model} {
		if part != "" && !strings.EqualFold(part, "all") {
			segments = append(segments, slugify(part))
		}
	}
	url := s.baseURL + s.searchPath
	if len(segments) > 0 {
		url += "/" + strings.Join(segments, "/")
	}
	return url
}

func (s *olxSource) Parse(html string) []models.RawListing {
	if listings := parseNextData(html); len(listings) > 0 {
		return listings
	}
	return s.parseBlocks(html)
}

// parseBlocks is the pattern tier: repeated <article data-id> cards,
// cross-referenced by title against the JSON-LD metadata island when one
// is present. Structured values win over pattern-extracted ones.
func (s *olxSource) parseBlocks(html string) []models.RawListing {
	ldItems := parseJSONLD(html)

	var results []models.RawListing
	for _, m := range articleRe.FindAllStringSubmatch(html, -1) {
		id, block := m[1], m[2]

		href := s.blockHref(block)
		if href == "" {
			// Non-listing noise: promo banners and layout articles have
			// no detail link.
			continue
		}

		title := ""
		if tm := h2Re.FindStringSubmatch(block); tm != nil {
			title = stripHTML(tm[1])
		} else if tm := titleARe.FindStringSubmatch(block); tm != nil {
			title = stripHTML(tm[1])
		}

		ld := findLdByTitle(ldItems, title)

		raw := models.RawListing{
			"id":    s.idPrefix + "-" + id,
			"url":   absoluteURL(href, s.baseURL),
			"title": title,
			"price": s.blockPrice(block, ld),
		}
		if im := imageRe.FindStringSubmatch(block); im != nil {
			raw["image"] = im[1]
		}
		if ym := yearRe.FindStringSubmatch(block); ym != nil {
			raw["year"] = models.ExtractNumber(ym[1])
		}
		raw["mileage"] = blockMileage(block, ld)
		if ld != nil && ld.ItemOffered.Brand != "" {
			raw["brand"] = ld.ItemOffered.Brand
		}
		if ld != nil && ld.ItemOffered.FuelType != "" {
			raw["fuel"] = ld.ItemOffered.FuelType
		}

		results = append(results, raw)
	}
	return results
}

func (s *olxSource) blockHref(block string) string {
	if m := s.hrefAbsRe.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	if m := s.hrefRelRe.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	return ""
}

func (s *olxSource) blockPrice(block string, ld *ldItem) int {
	if ld != nil {
		if f, err := ld.PriceSpecification.Price.Float64(); err == nil && f > 0 {
			return int(f)
		}
	}
	if m := eurAttrRe.FindStringSubmatch(block); m != nil {
		return models.ExtractNumber(m[1])
	}
	if m := s.priceTextRe.FindStringSubmatch(block); m != nil {
		return models.ExtractNumber(m[1])
	}
	return 0
}

func blockMileage(block string, ld *ldItem) int {
	if ld != nil {
		if n, err := ld.ItemOffered.MileageFromOdometer.Value.Int64(); err == nil && n > 0 {
			return int(n)
		}
	}
	if m := mileageRe.FindStringSubmatch(block); m != nil {
		return models.ExtractNumber(m[1])
	}
	return 0
}
