package invoice

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/retailco/invoice-processor/internal/inference"
)

var _ = Describe("ExemptionDetector", func() {
	var (
		capability *mockCapability
		detector   *ExemptionDetector
		notes      string
		exempt     bool
		usage      inference.Usage
	)

	BeforeEach(func() {
		capability = &mockCapability{
			exemptUsage: inference.Usage{PromptTokens: 20, CompletionTokens: 2},
		}
		detector = NewExemptionDetector(capability)
		notes = "This purchase is tax exempt per state code 123"
	})

	JustBeforeEach(func() {
		exempt, usage = detector.IsExempt(context.Background(), notes)
	})

	When("the capability answers YES", func() {
		BeforeEach(func() {
			capability.exemptResponse = "YES"
		})

		It("should report the invoice exempt", func() {
			Expect(exempt).To(BeTrue())
		})

		It("should report the call's token usage", func() {
			Expect(usage.PromptTokens).To(Equal(20))
			Expect(usage.CompletionTokens).To(Equal(2))
		})

		It("should include the notes in the prompt", func() {
			Expect(capability.exemptCalls).To(HaveLen(1))
			Expect(capability.exemptCalls[0]).To(ContainSubstring(notes))
		})
	})

	When("the answer has extra whitespace and casing", func() {
		BeforeEach(func() {
			capability.exemptResponse = "  yes \n"
		})

		It("should normalize before comparing", func() {
			Expect(exempt).To(BeTrue())
		})
	})

	When("the capability answers NO", func() {
		BeforeEach(func() {
			capability.exemptResponse = "NO"
		})

		It("should report the invoice taxable", func() {
			Expect(exempt).To(BeFalse())
		})
	})

	When("the capability answers something else", func() {
		BeforeEach(func() {
			capability.exemptResponse = "The invoice appears to be exempt"
		})

		It("should fail closed to taxable", func() {
			Expect(exempt).To(BeFalse())
		})
	})

	When("the call fails", func() {
		BeforeEach(func() {
			capability.exemptErr = errors.New("capability unavailable")
		})

		It("should fail closed to taxable", func() {
			Expect(exempt).To(BeFalse())
		})
	})

	When("the notes are blank", func() {
		BeforeEach(func() {
			notes = "   "
		})

		It("should report taxable without a call", func() {
			Expect(exempt).To(BeFalse())
			Expect(capability.exemptCalls).To(BeEmpty())
		})

		It("should report zero token usage", func() {
			Expect(usage).To(Equal(inference.Usage{}))
		})
	})
})
