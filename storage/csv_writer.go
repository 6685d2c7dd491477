package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"carspotter/models"
)

var csvHeader = []string{
	"scanned_at", "external_id", "source_platform", "country", "title",
	"brand", "model", "price_eur", "year", "mileage", "fuel", "gearbox",
	"location", "url",
}

// CSVWriter appends every listing a scan produced to an audit file, for
// offline inspection of what the pipeline actually saw.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter opens (or creates) the audit file in append mode, writing
// the header only for a fresh file.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}

	cw := &CSVWriter{file: file, writer: csv.NewWriter(file)}
	if fresh {
		if err := cw.writer.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		cw.writer.Flush()
	}
	return cw, nil
}

// Append records one batch of scanned listings.
func (cw *CSVWriter) Append(listings []*models.Listing) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, l := range listings {
		record := []string{
			now, l.ExternalID, l.SourcePlatform, l.Country, l.Title,
			l.Brand, l.Model, strconv.Itoa(l.PriceEUR), strconv.Itoa(l.Year),
			strconv.Itoa(l.Mileage), l.Fuel, l.Gearbox, l.Location,
			strings.TrimSpace(l.SourceURL),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("csv: write record: %w", err)
		}
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
