package models

// RawListing is the heterogeneous, source-specific record a parser pulls
// out of a page. Keys and value shapes differ per marketplace (and per
// localization of the same marketplace), so access goes through the
// resolver methods below: each takes an ordered list of candidate keys and
// returns the first present value. A RawListing lives only for the duration
// of one pipeline run and is discarded after normalization.
type RawListing map[string]any

// String resolves the first candidate key holding a non-empty string.
func (r RawListing) String(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Int resolves the first candidate key holding a usable number. JSON
// decoding yields float64, parsers may set native ints, and AI output can
// come back as a numeric string; all three are accepted.
func (r RawListing) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		case string:
			if parsed := ExtractNumber(n); parsed != 0 {
				return parsed, true
			}
		}
	}
	return 0, false
}

// Strings resolves the first candidate key holding a non-empty string
// slice. []any elements that are not strings are skipped.
func (r RawListing) Strings(keys ...string) ([]string, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch list := v.(type) {
		case []string:
			if len(list) > 0 {
				return list, true
			}
		case []any:
			out := make([]string, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out, true
			}
		}
	}
	return nil, false
}

// extractNumberCap bounds digit accumulation. Real prices, years and
// mileages stay under nine digits; longer runs are concatenated junk
// (VINs, phone numbers) that would overflow int.
const extractNumberCap = 100_000_000

// ExtractNumber strips every non-digit character and parses the remainder
// as an integer. An empty remainder yields zero. Deliberately
// locale-agnostic: "123 456 km", "123.456" and "123,456" all become 123456.
// Accumulation stops once the value reaches the cap, so degenerate digit
// runs never wrap negative.
func ExtractNumber(s string) int {
	n := 0
	seen := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			seen = true
			if n < extractNumberCap {
				n = n*10 + int(r-'0')
			}
		}
	}
	if !seen {
		return 0
	}
	return n
}
