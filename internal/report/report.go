// Package report writes the JSON, CSV, and text-summary artifacts for a
// processing run.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/retailco/invoice-processor/internal/invoice"
)

// Writer emits the output artifacts for a set of processed invoices
type Writer struct {
	storage Storage
}

// NewWriter creates a new Writer
func NewWriter(storage Storage) *Writer {
	return &Writer{storage: storage}
}

// WriteJSON writes all results as a single JSON document
func (w *Writer) WriteJSON(results []*invoice.Result, now time.Time) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling results: %w", err)
	}

	filename := fmt.Sprintf("invoice_results_%s.json", now.Format("20060102_150405"))
	return w.storage.Save(filename, data)
}

// csvHeader is the flattened one-row-per-line-item column layout
var csvHeader = []string{
	"InvoiceID",
	"FileName",
	"VendorName",
	"InvoiceDate",
	"AIPromptTokens",
	"AICompletionTokens",
	"ProcessingDateTime",
	"InvoicePreTaxTotal",
	"InvoiceTaxTotal",
	"InvoicePostTaxTotal",
	"LineItemDescription",
	"Quantity",
	"UnitPrice",
	"LineTotal",
	"TaxCategory",
	"TaxRate",
	"TaxAmount",
	"LineTotalWithTax",
	"SpecialNotes",
}

// WriteCSV writes all results in a flattened format with one row per
// line item
func (w *Writer) WriteCSV(results []*invoice.Result, now time.Time) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}

	for _, result := range results {
		for _, item := range result.InvoiceLineItems {
			row := []string{
				result.InvoiceID,
				result.FileName,
				result.VendorName,
				result.InvoiceDate,
				strconv.Itoa(result.AIPromptTokens),
				strconv.Itoa(result.AICompletionTokens),
				result.ProcessingDateTime.Format(time.RFC3339),
				formatAmount(result.InvoicePreTaxTotal),
				formatAmount(result.InvoiceTaxTotal),
				formatAmount(result.InvoicePostTaxTotal),
				item.Description,
				strconv.FormatFloat(item.Quantity, 'f', -1, 64),
				strconv.FormatFloat(item.UnitPrice, 'f', -1, 64),
				strconv.FormatFloat(item.LineTotal, 'f', -1, 64),
				item.TaxCategory,
				strconv.FormatFloat(item.TaxRate, 'f', -1, 64),
				strconv.FormatFloat(item.TaxAmount, 'f', -1, 64),
				strconv.FormatFloat(item.LineTotalWithTax, 'f', -1, 64),
				result.SpecialNotes,
			}
			if err := cw.Write(row); err != nil {
				return "", fmt.Errorf("writing csv row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	filename := fmt.Sprintf("invoice_results_%s.csv", now.Format("20060102_150405"))
	return w.storage.Save(filename, buf.Bytes())
}

// WriteSummary writes the human-readable batch summary report
func (w *Writer) WriteSummary(results []*invoice.Result, now time.Time) (string, error) {
	summary := invoice.Summarize(results)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "INVOICE PROCESSING SUMMARY REPORT\n")
	fmt.Fprintf(&buf, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&buf, "%s\n\n", divider)

	fmt.Fprintf(&buf, "OVERVIEW\n--------\n")
	fmt.Fprintf(&buf, "Total Invoices Processed: %d\n", summary.InvoiceCount)
	fmt.Fprintf(&buf, "Total Line Items: %d\n", summary.LineItemCount)
	fmt.Fprintf(&buf, "Average Line Items per Invoice: %.1f\n\n", summary.AvgLineItemsPerInvc)

	fmt.Fprintf(&buf, "FINANCIAL SUMMARY\n-----------------\n")
	fmt.Fprintf(&buf, "Total Pre-Tax Amount: $%.2f\n", summary.TotalPreTax)
	fmt.Fprintf(&buf, "Total Tax Amount: $%.2f\n", summary.TotalTax)
	fmt.Fprintf(&buf, "Total Post-Tax Amount: $%.2f\n", summary.TotalPostTax)
	fmt.Fprintf(&buf, "Effective Tax Rate: %.2f%%\n\n", summary.EffectiveTaxRate)

	fmt.Fprintf(&buf, "INVOICE DETAILS\n---------------\n")
	for _, result := range results {
		fmt.Fprintf(&buf, "\nInvoice: %s | File: %s\n", result.InvoiceID, result.FileName)
		fmt.Fprintf(&buf, "  Vendor: %s\n", result.VendorName)
		fmt.Fprintf(&buf, "  Date: %s\n", result.InvoiceDate)
		fmt.Fprintf(&buf, "  Line Items: %d\n", len(result.InvoiceLineItems))
		fmt.Fprintf(&buf, "  Pre-Tax: $%.2f | Tax: $%.2f | Post-Tax: $%.2f\n",
			result.InvoicePreTaxTotal, result.InvoiceTaxTotal, result.InvoicePostTaxTotal)
	}

	filename := fmt.Sprintf("processing_summary_%s.txt", now.Format("20060102_150405"))
	return w.storage.Save(filename, buf.Bytes())
}

const divider = "======================================================================"

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
