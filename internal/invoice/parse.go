package invoice

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseExtractionJSON parses the model's response into a RawExtraction.
// Vision models wrap JSON in markdown fences or prose often enough that
// the object is located by brace boundaries before unmarshaling.
func parseExtractionJSON(text string) (*RawExtraction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var raw RawExtraction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	raw.InvoiceNumber = strings.TrimSpace(raw.InvoiceNumber)
	if raw.InvoiceNumber == "" {
		raw.InvoiceNumber = InvoiceNumberUnknown
	}
	raw.VendorName = strings.TrimSpace(raw.VendorName)
	raw.InvoiceDate = normalizeDate(strings.TrimSpace(raw.InvoiceDate))
	raw.Notes = strings.TrimSpace(raw.Notes)

	return &raw, nil
}

// normalizeDate converts common date formats to YYYY-MM-DD. A date that
// matches no known format is passed through as extracted rather than
// replaced, so nothing is fabricated.
func normalizeDate(date string) string {
	if date == "" {
		return ""
	}

	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"01/02/2006",
		"02-01-2006",
		"January 2, 2006",
		"Jan 2, 2006",
	}
	for _, format := range formats {
		if d, err := time.Parse(format, date); err == nil {
			return d.Format("2006-01-02")
		}
	}

	return date
}
