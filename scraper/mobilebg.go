package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"carspotter/models"
)

// Mobile.bg serves classic server-rendered markup with no embedded state
// island, so this connector is pattern-tier only and returns partial
// records the normalizer completes.

var (
	mbgItemRe  = regexp.MustCompile(`(?is)<div class="photo">(.*?)</div>\s*<div class="text">`)
	mbgLinkRe  = regexp.MustCompile(`(?is)<div class="big">\s*<a href="([^"]+)"[^>]*>(.*?)</a>`)
	mbgPriceRe = regexp.MustCompile(`(?is)<div class="price\s*">(.*?)</div>`)
	mbgBrRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	mbgImgRe   = regexp.MustCompile(`(?i)src="([^"]+\.(?:jpg|jpeg|webp|png)[^"]*)"`)
)

type mobileBgSource struct {
	baseURL string
}

// NewMobileBg returns the Bulgarian Mobile.bg connector.
func NewMobileBg(baseURL string) Source {
	if baseURL == "" {
		baseURL = "https://www.mobile.bg"
	}
	return &mobileBgSource{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *mobileBgSource) Platform() string { return "Mobile.bg" }
func (s *mobileBgSource) Country() string  { return "Bulgaria" }

func (s *mobileBgSource) SearchURL(brand, model string) string {
	q := url.Values{}
	q.Set("act", "3")
	q.Set("slink", "cars")
	if brand != "" && !strings.EqualFold(brand, "all") {
		q.Set("f10", brand)
	}
	if model != "" && !strings.EqualFold(model, "all") {
		q.Set("f11", model)
	}
	return s.baseURL + "/pcgi/mobile.cgi?" + q.Encode()
}

func (s *mobileBgSource) Parse(html string) []models.RawListing {
	var results []models.RawListing

	for _, m := range mbgItemRe.FindAllStringSubmatch(html, -1) {
		block := m[1]

		href, title := "", ""
		if lm := mbgLinkRe.FindStringSubmatch(block); lm != nil {
			href = lm[1]
			title = stripHTML(lm[2])
		}

		price := 0
		if pm := mbgPriceRe.FindStringSubmatch(block); pm != nil {
			// First line before <br> carries the EUR/BGN amount.
			parts := mbgBrRe.Split(pm[1], 2)
			price = models.ExtractNumber(stripHTML(parts[0]))
		}

		if href == "" && price == 0 {
			continue
		}

		raw := models.RawListing{
			// No stable ID in the markup; mint one per scrape.
			"id":    "mbg-" + uuid.NewString()[:8],
			"url":   absoluteURL(href, s.baseURL),
			"price": price,
			"title": title,
		}
		if im := mbgImgRe.FindStringSubmatch(block); im != nil {
			raw["image"] = absoluteURL(im[1], s.baseURL)
		}
		results = append(results, raw)
	}
	return results
}
