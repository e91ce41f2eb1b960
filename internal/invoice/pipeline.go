package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailco/invoice-processor/internal/inference"
)

// exemptionMarker is appended to every tax category label on an invoice
// whose notes mark it tax-exempt. Classification is still performed and
// reported; only the rate is overridden.
const exemptionMarker = " (TAX-EXEMPT)"

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Pipeline processes invoices end-to-end: extraction, exemption check,
// per-line-item classification and tax calculation, and aggregation.
// It is strictly sequential; one invoice is fully processed before the
// next begins.
type Pipeline struct {
	extractor  *Extractor
	matcher    *Matcher
	detector   *ExemptionDetector
	db         DB
	timeSource TimeSource

	results    []*Result
	totalUsage inference.Usage
}

// NewPipeline creates a new Pipeline. The result store is optional; pass
// nil to skip persistence.
func NewPipeline(extractor *Extractor, matcher *Matcher, detector *ExemptionDetector, db DB) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		matcher:    matcher,
		detector:   detector,
		db:         db,
		timeSource: &defaultTimeSource{},
	}
}

// NewPipelineWithDeps creates a new Pipeline with a custom time source
// for testing
func NewPipelineWithDeps(extractor *Extractor, matcher *Matcher, detector *ExemptionDetector, db DB, timeSource TimeSource) *Pipeline {
	p := NewPipeline(extractor, matcher, detector, db)
	p.timeSource = timeSource
	return p
}

// ProcessInvoice runs one invoice through the full pipeline. The only
// error it returns is a document that cannot be read at all; extraction,
// classification, and exemption failures degrade to their fallbacks and
// still yield a Result.
func (p *Pipeline) ProcessInvoice(ctx context.Context, path string) (*Result, error) {
	filename := filepath.Base(path)
	slog.Info("Processing invoice", "file", filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening invoice: %w", err)
	}

	raw, invoiceUsage := p.extractor.Extract(ctx, filename, data)

	isExempt, exemptionUsage := p.detector.IsExempt(ctx, raw.Notes)
	invoiceUsage.Add(exemptionUsage)
	if isExempt {
		slog.Info("Tax-exempt invoice detected from notes", "file", filename)
	}

	lineItems := make([]ClassifiedLineItem, 0, len(raw.LineItems))
	preTax := decimal.Zero
	tax := decimal.Zero

	for _, item := range raw.LineItems {
		quantity := coerceNumber(item.Quantity)
		unitPrice := coerceNumber(item.UnitPrice)

		lineTotal := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice))
		if item.Total.String() != "" {
			lineTotal = decimal.NewFromFloat(coerceNumber(item.Total))
		}

		category, rate, matchUsage := p.matcher.Classify(ctx, item.Description)
		invoiceUsage.Add(matchUsage)

		if isExempt {
			rate = 0
			category += exemptionMarker
		}

		// Tax amounts are money, so each is rounded half-up to cents;
		// the raw line total is carried through unrounded.
		taxAmount := lineTotal.Mul(decimal.NewFromFloat(rate)).Div(decimal.NewFromInt(100)).Round(2)

		lineItems = append(lineItems, ClassifiedLineItem{
			Description:      item.Description,
			Quantity:         quantity,
			UnitPrice:        unitPrice,
			LineTotal:        lineTotal.InexactFloat64(),
			TaxCategory:      category,
			TaxRate:          rate,
			TaxAmount:        taxAmount.InexactFloat64(),
			LineTotalWithTax: lineTotal.Add(taxAmount).InexactFloat64(),
		})

		preTax = preTax.Add(lineTotal)
		tax = tax.Add(taxAmount)
	}

	result := &Result{
		InvoiceID:           raw.InvoiceNumber,
		FileName:            filename,
		VendorName:          raw.VendorName,
		InvoiceDate:         raw.InvoiceDate,
		AIPromptTokens:      invoiceUsage.PromptTokens,
		AICompletionTokens:  invoiceUsage.CompletionTokens,
		ProcessingDateTime:  p.timeSource.Now(),
		InvoicePreTaxTotal:  preTax.Round(2).InexactFloat64(),
		InvoiceTaxTotal:     tax.Round(2).InexactFloat64(),
		InvoicePostTaxTotal: preTax.Add(tax).Round(2).InexactFloat64(),
		InvoiceLineItems:    lineItems,
		SpecialNotes:        raw.Notes,
	}

	p.results = append(p.results, result)
	p.totalUsage.Add(invoiceUsage)

	if p.db != nil {
		if err := p.db.SaveResult(result); err != nil {
			slog.Warn("Failed to persist result", "file", filename, "error", err)
		}
	}

	slog.Info("Processed invoice",
		"invoice_id", result.InvoiceID,
		"line_items", len(result.InvoiceLineItems),
		"pre_tax_total", result.InvoicePreTaxTotal,
		"tax_total", result.InvoiceTaxTotal,
		"post_tax_total", result.InvoicePostTaxTotal,
	)

	return result, nil
}

// ProcessDirectory runs every PDF invoice in a directory through the
// pipeline. Individual invoice failures are logged and skipped; the
// batch always continues.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) ([]*Result, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("reading invoices directory: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}

	slog.Info("Found invoice files to process", "count", len(files))

	for _, file := range files {
		if _, err := p.ProcessInvoice(ctx, file); err != nil {
			slog.Error("Skipping invoice", "file", filepath.Base(file), "error", err)
			continue
		}
	}

	slog.Info("Processing complete", "processed", len(p.results))

	return p.results, nil
}

// Results returns all results accumulated across the run, in processing
// order
func (p *Pipeline) Results() []*Result {
	return p.results
}

// TotalUsage returns the run-wide accumulated token usage
func (p *Pipeline) TotalUsage() inference.Usage {
	return p.totalUsage
}

// Summarize computes batch aggregates over a set of results. Rates and
// averages over an empty batch are 0, never a division error.
func Summarize(results []*Result) Summary {
	summary := Summary{InvoiceCount: len(results)}

	preTax := decimal.Zero
	tax := decimal.Zero
	postTax := decimal.Zero
	for _, result := range results {
		summary.LineItemCount += len(result.InvoiceLineItems)
		preTax = preTax.Add(decimal.NewFromFloat(result.InvoicePreTaxTotal))
		tax = tax.Add(decimal.NewFromFloat(result.InvoiceTaxTotal))
		postTax = postTax.Add(decimal.NewFromFloat(result.InvoicePostTaxTotal))
	}

	summary.TotalPreTax = preTax.InexactFloat64()
	summary.TotalTax = tax.InexactFloat64()
	summary.TotalPostTax = postTax.InexactFloat64()

	if summary.InvoiceCount > 0 {
		summary.AvgLineItemsPerInvc = float64(summary.LineItemCount) / float64(summary.InvoiceCount)
	}
	if preTax.IsPositive() {
		summary.EffectiveTaxRate = tax.Div(preTax).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	return summary
}

// coerceNumber converts an extracted numeric field to a float64,
// defaulting to 0 when the field is absent or unparsable
func coerceNumber(n json.Number) float64 {
	if n.String() == "" {
		return 0
	}
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}
