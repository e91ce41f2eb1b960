// Package taxrate loads the tax category table used to classify and
// tax invoice line items.
package taxrate

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	categoryColumn = "Category"
	rateColumn     = "Tax Rate (%)"
)

// Table is an immutable mapping from tax category name to percentage
// tax rate. Category order matches the source file, which matters for
// classification prompts and substring-match resolution.
type Table struct {
	categories []string
	rates      map[string]float64
}

// candidateEncoding pairs a name with a decoder. A nil decoder means
// the bytes are used as-is after UTF-8 validation.
type candidateEncoding struct {
	name    string
	decoder *encoding.Decoder
}

// Rate source files come from spreadsheet exports with inconsistent
// encodings, so try each candidate in order and keep the first that
// yields a structurally valid, non-empty table.
var candidateEncodings = []candidateEncoding{
	{name: "utf-8", decoder: nil},
	{name: "iso-8859-1", decoder: charmap.ISO8859_1.NewDecoder()},
	{name: "windows-1252", decoder: charmap.Windows1252.NewDecoder()},
}

// Load reads the tax category table from a CSV file with Category and
// Tax Rate (%) columns. It returns an error if no candidate encoding
// produces a non-empty table.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tax rates file: %w", err)
	}

	var lastErr error
	for _, enc := range candidateEncodings {
		text, err := decode(raw, enc)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", enc.name, err)
			continue
		}

		table, err := parse(text)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", enc.name, err)
			continue
		}

		return table, nil
	}

	return nil, fmt.Errorf("could not load tax rates from %s: %w", path, lastErr)
}

// decode converts the raw bytes to a string using the candidate encoding
func decode(raw []byte, enc candidateEncoding) (string, error) {
	if enc.decoder == nil {
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("invalid UTF-8 bytes")
		}
		return string(raw), nil
	}

	decoded, err := enc.decoder.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}
	return string(decoded), nil
}

// parse reads the CSV text into a Table
func parse(text string) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := records[0]
	categoryIdx, rateIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")) {
		case categoryColumn:
			categoryIdx = i
		case rateColumn:
			rateIdx = i
		}
	}
	if categoryIdx == -1 || rateIdx == -1 {
		return nil, fmt.Errorf("missing %q or %q column", categoryColumn, rateColumn)
	}

	table := &Table{rates: make(map[string]float64)}
	for _, record := range records[1:] {
		if len(record) <= categoryIdx || len(record) <= rateIdx {
			return nil, fmt.Errorf("row has too few columns")
		}

		category := strings.TrimSpace(record[categoryIdx])
		if category == "" {
			continue
		}

		rate, err := strconv.ParseFloat(strings.TrimSpace(record[rateIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing tax rate for %q: %w", category, err)
		}
		if rate < 0 {
			return nil, fmt.Errorf("negative tax rate for %q", category)
		}

		if _, exists := table.rates[category]; !exists {
			table.categories = append(table.categories, category)
		}
		table.rates[category] = rate
	}

	if len(table.categories) == 0 {
		return nil, fmt.Errorf("no tax categories found")
	}

	return table, nil
}

// NewTable builds a Table from ordered category/rate pairs. Intended for
// tests and callers that already hold the data in memory.
func NewTable(categories []string, rates map[string]float64) (*Table, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("tax category table is empty")
	}
	table := &Table{rates: make(map[string]float64, len(categories))}
	for _, category := range categories {
		rate, ok := rates[category]
		if !ok {
			return nil, fmt.Errorf("no rate for category %q", category)
		}
		table.categories = append(table.categories, category)
		table.rates[category] = rate
	}
	return table, nil
}

// Categories returns the category names in load order
func (t *Table) Categories() []string {
	return t.categories
}

// Rate returns the tax rate for a category
func (t *Table) Rate(category string) (float64, bool) {
	rate, ok := t.rates[category]
	return rate, ok
}

// Len returns the number of categories in the table
func (t *Table) Len() int {
	return len(t.categories)
}
