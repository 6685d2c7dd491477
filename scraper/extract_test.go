package scraper

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<h2><a href=\"/x\">BMW 320d</a></h2>", "BMW 320d"},
		{"Audi&nbsp;A4   <b>2.0</b>", "Audi A4 2.0"},
		{"  plain  ", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripHTML(tt.input); got != tt.expected {
			t.Errorf("stripHTML(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BMW", "bmw"},
		{"Seria 3", "seria-3"},
		{"  Land  Rover  ", "land-rover"},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.expected {
			t.Errorf("slugify(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.otomoto.pl"
	tests := []struct {
		href     string
		expected string
	}{
		{"https://www.otomoto.pl/oferta/x", "https://www.otomoto.pl/oferta/x"},
		{"/oferta/x", "https://www.otomoto.pl/oferta/x"},
		{"//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := absoluteURL(tt.href, base); got != tt.expected {
			t.Errorf("absoluteURL(%q) = %q, expected %q", tt.href, got, tt.expected)
		}
	}
}
