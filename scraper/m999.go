package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"carspotter/models"
)

// 999.md (Moldova). Pattern-tier only, like Mobile.bg.

var (
	m999ItemRe  = regexp.MustCompile(`(?is)<li[^>]*class="[^"]*ads-list-photo-item[^"]*"[^>]*>(.*?)</li>`)
	m999HrefRe  = regexp.MustCompile(`(?i)href="(/ro/[0-9]+)"`)
	m999PriceRe = regexp.MustCompile(`(?i)([\d\s]+)\s*(?:€|EUR|lei|MDL)`)
	m999ImgRe   = regexp.MustCompile(`(?i)src="([^"]+\.(?:jpg|jpeg|webp|png)[^"]*)"`)
	m999TitleRe = regexp.MustCompile(`(?i)title="([^"]+)"`)
	m999H3Re    = regexp.MustCompile(`(?is)<h3[^>]*>(.*?)</h3>`)
)

type m999Source struct {
	baseURL string
}

// New999Md returns the Moldovan 999.md connector.
func New999Md(baseURL string) Source {
	if baseURL == "" {
		baseURL = "https://999.md"
	}
	return &m999Source{baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *m999Source) Platform() string { return "999.md" }
func (s *m999Source) Country() string  { return "Moldova" }

func (s *m999Source) SearchURL(brand, model string) string {
	q := url.Values{}
	q.Set("applied_filter_origin", "url")
	if brand != "" && !strings.EqualFold(brand, "all") {
		q.Set("f[brand][0]", brand)
	}
	if model != "" && !strings.EqualFold(model, "all") {
		q.Set("f[model][0]", model)
	}
	return s.baseURL + "/ro/list/transport/cars?" + q.Encode()
}

func (s *m999Source) Parse(html string) []models.RawListing {
	var results []models.RawListing

	for _, m := range m999ItemRe.FindAllStringSubmatch(html, -1) {
		block := m[1]

		hm := m999HrefRe.FindStringSubmatch(block)
		if hm == nil {
			continue
		}

		raw := models.RawListing{
			"id":  "999-" + uuid.NewString()[:8],
			"url": s.baseURL + hm[1],
		}
		if pm := m999PriceRe.FindStringSubmatch(block); pm != nil {
			raw["price"] = models.ExtractNumber(pm[1])
		}
		if im := m999ImgRe.FindStringSubmatch(block); im != nil {
			raw["image"] = absoluteURL(im[1], s.baseURL)
		}
		if tm := m999TitleRe.FindStringSubmatch(block); tm != nil {
			raw["title"] = tm[1]
		} else if tm := m999H3Re.FindStringSubmatch(block); tm != nil {
			raw["title"] = stripHTML(tm[1])
		}
		results = append(results, raw)
	}
	return results
}
