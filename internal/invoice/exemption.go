package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/retailco/invoice-processor/internal/inference"
)

const exemptionSystemPrompt = "You are a tax compliance expert. Answer only YES or NO."

const exemptionPromptTemplate = `You are a tax compliance expert. Analyze the following invoice notes and determine if this invoice should be TAX-EXEMPT (no taxes should be applied).

Invoice Notes: "%s"

Look for any indication that:
- Tax should not be applied
- Items are tax-exempt
- Invoice is tax-free
- No tax is required
- Tax is waived or not applicable

Respond with ONLY "YES" if the invoice is tax-exempt, or "NO" if taxes should be applied normally.
Do not include any explanation.`

// ExemptionDetector inspects invoice notes for tax-exemption language
type ExemptionDetector struct {
	capability inference.Capability
}

// NewExemptionDetector creates a new ExemptionDetector
func NewExemptionDetector(capability inference.Capability) *ExemptionDetector {
	return &ExemptionDetector{capability: capability}
}

// IsExempt reports whether the notes mark the invoice tax-exempt. Blank
// notes short-circuit to false without a call. Any response other than
// YES, and any call failure, resolves to false: the detector fails
// closed toward taxable, never toward exempt.
func (d *ExemptionDetector) IsExempt(ctx context.Context, notes string) (bool, inference.Usage) {
	if strings.TrimSpace(notes) == "" {
		return false, inference.Usage{}
	}

	prompt := fmt.Sprintf(exemptionPromptTemplate, notes)

	response, usage, err := d.capability.ClassifyText(ctx, exemptionSystemPrompt, prompt)
	if err != nil {
		slog.Warn("Could not check tax-exempt status", "error", err)
		return false, usage
	}

	return strings.ToUpper(strings.TrimSpace(response)) == "YES", usage
}
