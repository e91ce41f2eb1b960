package invoice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseExtractionJSON", func() {
	var (
		jsonInput string
		raw       *RawExtraction
		err       error
	)

	JustBeforeEach(func() {
		raw, err = parseExtractionJSON(jsonInput)
	})

	When("parsing valid JSON", func() {
		BeforeEach(func() {
			jsonInput = `{
				"invoice_number": "INV-42",
				"vendor_name": "Acme Retail",
				"invoice_date": "2024-01-15",
				"line_items": [
					{"description": "Cola 12-pack", "quantity": 2, "unit_price": 5.5, "total": 11.0}
				],
				"notes": "Net 30"
			}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the header fields", func() {
			Expect(raw.InvoiceNumber).To(Equal("INV-42"))
			Expect(raw.VendorName).To(Equal("Acme Retail"))
			Expect(raw.InvoiceDate).To(Equal("2024-01-15"))
			Expect(raw.Notes).To(Equal("Net 30"))
		})

		It("should parse the line items in order", func() {
			Expect(raw.LineItems).To(HaveLen(1))
			Expect(raw.LineItems[0].Description).To(Equal("Cola 12-pack"))
			Expect(raw.LineItems[0].Quantity.String()).To(Equal("2"))
			Expect(raw.LineItems[0].Total.String()).To(Equal("11.0"))
		})
	})

	When("parsing JSON wrapped in markdown code blocks", func() {
		BeforeEach(func() {
			jsonInput = "```json\n{\"invoice_number\": \"INV-1\", \"vendor_name\": \"Acme\", \"invoice_date\": \"2024-01-15\", \"line_items\": [], \"notes\": \"\"}\n```"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should parse the invoice number", func() {
			Expect(raw.InvoiceNumber).To(Equal("INV-1"))
		})
	})

	When("the JSON is surrounded by prose", func() {
		BeforeEach(func() {
			jsonInput = `Here is the extracted data: {"invoice_number": "INV-2", "vendor_name": "Acme", "invoice_date": "", "line_items": [], "notes": ""} I hope that helps!`
		})

		It("should extract the object by brace boundaries", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.InvoiceNumber).To(Equal("INV-2"))
		})
	})

	When("a line item omits quantity and total", func() {
		BeforeEach(func() {
			jsonInput = `{"invoice_number": "INV-3", "vendor_name": "Acme", "invoice_date": "", "line_items": [{"description": "Service fee", "unit_price": 25.0}], "notes": ""}`
		})

		It("should leave the absent fields empty", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.LineItems[0].Quantity.String()).To(BeEmpty())
			Expect(raw.LineItems[0].Total.String()).To(BeEmpty())
		})
	})

	When("the invoice number is empty", func() {
		BeforeEach(func() {
			jsonInput = `{"invoice_number": "", "vendor_name": "Acme", "invoice_date": "", "line_items": [], "notes": ""}`
		})

		It("should default to the unknown sentinel", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.InvoiceNumber).To(Equal("UNKNOWN"))
		})
	})

	When("the date is in a non-ISO format", func() {
		BeforeEach(func() {
			jsonInput = `{"invoice_number": "INV-4", "vendor_name": "Acme", "invoice_date": "01/15/2024", "line_items": [], "notes": ""}`
		})

		It("should normalize it to YYYY-MM-DD", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.InvoiceDate).To(Equal("2024-01-15"))
		})
	})

	When("the date matches no known format", func() {
		BeforeEach(func() {
			jsonInput = `{"invoice_number": "INV-5", "vendor_name": "Acme", "invoice_date": "sometime last spring", "line_items": [], "notes": ""}`
		})

		It("should pass it through as extracted", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw.InvoiceDate).To(Equal("sometime last spring"))
		})
	})

	When("there is no JSON object in the response", func() {
		BeforeEach(func() {
			jsonInput = `I could not read this invoice.`
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("the JSON is malformed", func() {
		BeforeEach(func() {
			jsonInput = `{"invoice_number": "INV-6", "line_items": [}`
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})
