package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/retailco/invoice-processor/internal/inference"
	"github.com/retailco/invoice-processor/internal/taxrate"
)

// Fallback used when the capability's answer matches no category in the
// table, the response is empty, or the call fails. The hard-coded rate
// only applies if the fallback category itself is missing from the table.
const (
	fallbackCategory = "Packaged Snacks"
	fallbackRate     = 4.0
)

const matcherSystemPrompt = "You are a precise tax category classifier. You must select the most specific matching category from the provided list. Always prefer specific categories (e.g., 'Car Batteries') over general ones (e.g., 'Batteries')."

const matcherPromptTemplate = `You are a tax classification expert for retail products. Given a product description, identify the MOST SPECIFIC and appropriate tax category from the list below.

Product Description: %s

Available Tax Categories:
%s

IMPORTANT CLASSIFICATION RULES:
1. Choose the MOST SPECIFIC category that matches the product
2. For automotive products:
   - Use "Car Batteries" for automotive/vehicle batteries (AGM, lead-acid, etc.)
   - Use "Batteries" only for household batteries (AA, AAA, D, etc.)
   - Use "Motor Oil" for engine oils and lubricants
   - Use "Automotive Parts" for general auto parts (filters, spark plugs, brake pads)
   - Use "Tires" for vehicle tires
3. For beverages:
   - Use "Alcoholic Beverages" for beer, wine, spirits
   - Use "Soft Drinks" for soda, carbonated drinks
   - Use "Coffee & Tea" for coffee and tea products
   - Use "Bottled Water" for plain water
4. Always prefer specific categories over general ones
5. Look for brand names and technical specifications as clues (e.g., "CCA" indicates car battery)

Return ONLY the exact category name from the list above. Do not include explanation.`

// Matcher maps free-text line-item descriptions to tax categories using
// the text side of the inference capability.
type Matcher struct {
	capability inference.Capability
	table      *taxrate.Table
}

// NewMatcher creates a new Matcher
func NewMatcher(capability inference.Capability, table *taxrate.Table) *Matcher {
	return &Matcher{capability: capability, table: table}
}

// Classify resolves a product description to a (category, rate) pair.
// It never fails: call errors and unrecognized labels resolve to the
// fallback category with a logged warning.
func (m *Matcher) Classify(ctx context.Context, description string) (string, float64, inference.Usage) {
	var categoryList strings.Builder
	for _, category := range m.table.Categories() {
		fmt.Fprintf(&categoryList, "- %s\n", category)
	}

	prompt := fmt.Sprintf(matcherPromptTemplate, description, strings.TrimRight(categoryList.String(), "\n"))

	response, usage, err := m.capability.ClassifyText(ctx, matcherSystemPrompt, prompt)
	if err != nil {
		slog.Warn("Category classification call failed", "description", description, "error", err)
		return m.fallback(), m.fallbackTableRate(), usage
	}

	category, rate, ok := m.resolve(response)
	if !ok {
		slog.Warn("Could not match category, using default",
			"response", response,
			"description", description,
			"default", fallbackCategory,
		)
		return m.fallback(), m.fallbackTableRate(), usage
	}

	return category, rate, usage
}

// resolve applies the resolution rules to the capability's raw answer:
// exact match first, then a case-insensitive substring match in either
// direction, iterating categories in table load order.
func (m *Matcher) resolve(response string) (string, float64, bool) {
	response = strings.TrimSpace(response)
	if response == "" {
		return "", 0, false
	}

	if rate, ok := m.table.Rate(response); ok {
		return response, rate, true
	}

	lowered := strings.ToLower(response)
	for _, category := range m.table.Categories() {
		loweredCategory := strings.ToLower(category)
		if strings.Contains(lowered, loweredCategory) || strings.Contains(loweredCategory, lowered) {
			rate, _ := m.table.Rate(category)
			return category, rate, true
		}
	}

	return "", 0, false
}

func (m *Matcher) fallback() string {
	return fallbackCategory
}

func (m *Matcher) fallbackTableRate() float64 {
	if rate, ok := m.table.Rate(fallbackCategory); ok {
		return rate
	}
	return fallbackRate
}
