package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/retailco/invoice-processor/internal/inference"
)

// extractionPrompt is the fixed instruction sent with every rendered
// document image
const extractionPrompt = `You are an expert invoice data extraction system. Extract structured data from this invoice.

Return a JSON object with this EXACT structure:
{
    "invoice_number": "invoice number or ID",
    "vendor_name": "vendor or supplier name",
    "invoice_date": "date in YYYY-MM-DD format if possible",
    "line_items": [
        {
            "description": "product or service description",
            "quantity": numeric_quantity,
            "unit_price": numeric_price_per_unit,
            "total": numeric_line_total
        }
    ],
    "notes": "any special notes, terms, or observations"
}

Important:
- Extract ALL line items from the invoice
- For quantities and prices, use numbers only (no currency symbols or commas)
- If a field is not found, use null or empty string
- Be precise with line item descriptions
- Calculate totals if not explicitly stated (quantity * unit_price)
- Return ONLY valid JSON, no additional text`

// probeTextLimit bounds how much directly-extracted document text is
// included as extra prompt context
const probeTextLimit = 2000

// Extractor turns a scanned invoice document into a RawExtraction using
// the vision side of the inference capability.
type Extractor struct {
	capability inference.Capability
}

// NewExtractor creates a new Extractor
func NewExtractor(capability inference.Capability) *Extractor {
	return &Extractor{capability: capability}
}

// Extract produces a RawExtraction for a document. It never returns an
// error: every failure class degrades to a sentinel record whose notes
// describe what went wrong, and the usage of any call made is still
// reported so the caller can account for it.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*RawExtraction, inference.Usage) {
	var imagePNG []byte
	var probeText string

	switch classifyDocument(filename) {
	case kindPDF:
		probeText = probeDocumentText(data)

		rendered, err := pdfToImage(data)
		if err != nil {
			slog.Warn("Failed to render PDF", "file", filename, "error", err)
			return errorExtraction(fmt.Sprintf("Extraction error: %v", err)), inference.Usage{}
		}
		imagePNG = rendered
	case kindImage:
		converted, err := imageToPNG(data)
		if err != nil {
			slog.Warn("Failed to convert image", "file", filename, "error", err)
			return errorExtraction(fmt.Sprintf("Extraction error: %v", err)), inference.Usage{}
		}
		imagePNG = converted
	default:
		slog.Warn("Unsupported document type", "file", filename)
		return unknownExtraction("Failed to extract data"), inference.Usage{}
	}

	prompt := extractionPrompt
	if probeText != "" {
		probeText = truncateText(probeText, probeTextLimit)
		prompt = fmt.Sprintf("%s\n\nExtracted text from the document:\n%s", prompt, probeText)
	}

	response, usage, err := e.capability.ExtractStructured(ctx, imagePNG, prompt)
	if err != nil {
		slog.Warn("Extraction call failed", "file", filename, "error", err)
		return errorExtraction(fmt.Sprintf("Extraction error: %v", err)), usage
	}

	raw, err := parseExtractionJSON(response)
	if err != nil {
		slog.Warn("Failed to parse extraction response", "file", filename, "error", err)
		return errorExtraction(fmt.Sprintf("Extraction error: %v", err)), usage
	}

	return raw, usage
}

// truncateText cuts s down to at most limit bytes without splitting a
// multi-byte rune
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// unknownExtraction is the sentinel for documents of an unsupported type
func unknownExtraction(note string) *RawExtraction {
	return &RawExtraction{
		InvoiceNumber: InvoiceNumberUnknown,
		VendorName:    InvoiceNumberUnknown,
		Notes:         note,
	}
}

// errorExtraction is the sentinel for any extraction failure
func errorExtraction(note string) *RawExtraction {
	return &RawExtraction{
		InvoiceNumber: InvoiceNumberError,
		VendorName:    InvoiceNumberError,
		Notes:         note,
	}
}
