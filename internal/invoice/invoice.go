package invoice

import (
	"encoding/json"
	"time"
)

// Sentinel invoice numbers used when extraction cannot produce a real record.
const (
	InvoiceNumberUnknown = "UNKNOWN"
	InvoiceNumberError   = "ERROR"
)

// RawLineItem is one unvalidated line item as extracted from a document.
// Numeric fields stay as json.Number so that absent values are
// distinguishable from zero; coercion happens in the pipeline.
type RawLineItem struct {
	Description string      `json:"description"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Total       json.Number `json:"total"`
}

// RawExtraction is the unvalidated output of a single extraction call
type RawExtraction struct {
	InvoiceNumber string        `json:"invoice_number"`
	VendorName    string        `json:"vendor_name"`
	InvoiceDate   string        `json:"invoice_date"`
	LineItems     []RawLineItem `json:"line_items"`
	Notes         string        `json:"notes"`
}

// ClassifiedLineItem is a line item with its tax category, rate, and
// computed tax amounts. Immutable once built.
type ClassifiedLineItem struct {
	Description      string  `json:"description"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	LineTotal        float64 `json:"line_total"`
	TaxCategory      string  `json:"tax_category"`
	TaxRate          float64 `json:"tax_rate"`
	TaxAmount        float64 `json:"tax_amount"`
	LineTotalWithTax float64 `json:"line_total_with_tax"`
}

// Result is one fully processed invoice
type Result struct {
	InvoiceID           string               `json:"InvoiceID"`
	FileName            string               `json:"FileName"`
	VendorName          string               `json:"VendorName"`
	InvoiceDate         string               `json:"InvoiceDate"`
	AIPromptTokens      int                  `json:"AIPromptTokens"`
	AICompletionTokens  int                  `json:"AICompletionTokens"`
	ProcessingDateTime  time.Time            `json:"ProcessingDateTime"`
	InvoicePreTaxTotal  float64              `json:"InvoicePreTaxTotal"`
	InvoiceTaxTotal     float64              `json:"InvoiceTaxTotal"`
	InvoicePostTaxTotal float64              `json:"InvoicePostTaxTotal"`
	InvoiceLineItems    []ClassifiedLineItem `json:"InvoiceLineItems"`
	SpecialNotes        string               `json:"SpecialNotes"`
}

// Summary aggregates a batch of processed invoices
type Summary struct {
	InvoiceCount        int
	LineItemCount       int
	AvgLineItemsPerInvc float64
	TotalPreTax         float64
	TotalTax            float64
	TotalPostTax        float64
	EffectiveTaxRate    float64
}
