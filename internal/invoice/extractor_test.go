package invoice

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/retailco/invoice-processor/internal/inference"
)

var _ = Describe("Extractor", func() {
	var (
		capability *mockCapability
		extractor  *Extractor
		filename   string
		data       []byte
		raw        *RawExtraction
		usage      inference.Usage
	)

	BeforeEach(func() {
		capability = &mockCapability{
			extractUsage: inference.Usage{PromptTokens: 100, CompletionTokens: 40},
		}
		extractor = NewExtractor(capability)

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())
		filename = "invoice.png"
		data = buf.Bytes()
	})

	JustBeforeEach(func() {
		raw, usage = extractor.Extract(context.Background(), filename, data)
	})

	When("the capability returns a valid extraction", func() {
		BeforeEach(func() {
			capability.extractResponse = `{"invoice_number": "INV-9", "vendor_name": "Acme", "invoice_date": "2024-02-01", "line_items": [], "notes": "Net 30"}`
		})

		It("should return the parsed record", func() {
			Expect(raw.InvoiceNumber).To(Equal("INV-9"))
			Expect(raw.Notes).To(Equal("Net 30"))
		})

		It("should report the call's token usage", func() {
			Expect(usage.PromptTokens).To(Equal(100))
			Expect(usage.CompletionTokens).To(Equal(40))
		})
	})

	When("the capability call fails", func() {
		BeforeEach(func() {
			capability.extractErr = errors.New("capability unavailable")
		})

		It("should return the error sentinel", func() {
			Expect(raw.InvoiceNumber).To(Equal("ERROR"))
			Expect(raw.LineItems).To(BeEmpty())
			Expect(raw.Notes).To(ContainSubstring("Extraction error"))
		})

		It("should still report the call's token usage", func() {
			Expect(usage.PromptTokens).To(Equal(100))
		})
	})

	When("the capability returns unparsable output", func() {
		BeforeEach(func() {
			capability.extractResponse = "I could not read this invoice."
		})

		It("should return the error sentinel", func() {
			Expect(raw.InvoiceNumber).To(Equal("ERROR"))
			Expect(raw.Notes).To(ContainSubstring("Extraction error"))
		})
	})

	When("the document type is unsupported", func() {
		BeforeEach(func() {
			filename = "invoice.docx"
			data = []byte("not an invoice")
		})

		It("should return the unknown sentinel without calling the capability", func() {
			Expect(raw.InvoiceNumber).To(Equal("UNKNOWN"))
			Expect(capability.extractCalls).To(BeZero())
		})

		It("should report zero token usage", func() {
			Expect(usage).To(Equal(inference.Usage{}))
		})
	})

	When("the image cannot be decoded", func() {
		BeforeEach(func() {
			data = []byte("definitely not a png")
		})

		It("should return the error sentinel without calling the capability", func() {
			Expect(raw.InvoiceNumber).To(Equal("ERROR"))
			Expect(capability.extractCalls).To(BeZero())
		})
	})

	When("the PDF cannot be rendered", func() {
		BeforeEach(func() {
			filename = "invoice.pdf"
			data = []byte("%PDF-1.4 truncated")
		})

		It("should return the error sentinel without calling the capability", func() {
			Expect(raw.InvoiceNumber).To(Equal("ERROR"))
			Expect(capability.extractCalls).To(BeZero())
		})
	})
})

var _ = Describe("truncateText", func() {
	It("should leave text within the limit alone", func() {
		Expect(truncateText("héllo", 10)).To(Equal("héllo"))
	})

	It("should cut at the limit on an ASCII boundary", func() {
		Expect(truncateText("abcdef", 3)).To(Equal("abc"))
	})

	It("should not split a multi-byte rune at the limit", func() {
		// "é" is two bytes; a byte slice at 2000 would land in the
		// middle of it and yield invalid UTF-8.
		text := strings.Repeat("a", 1999) + "é"
		got := truncateText(text, 2000)
		Expect(got).To(Equal(strings.Repeat("a", 1999)))
		Expect(utf8.ValidString(got)).To(BeTrue())
	})
})

var _ = Describe("classifyDocument", func() {
	It("should treat PDF as the primary document type", func() {
		Expect(classifyDocument("scan.pdf")).To(Equal(kindPDF))
		Expect(classifyDocument("SCAN.PDF")).To(Equal(kindPDF))
	})

	It("should accept common image formats", func() {
		for _, name := range []string{"a.png", "b.jpg", "c.jpeg", "d.gif", "e.heic", "f.heif"} {
			Expect(classifyDocument(name)).To(Equal(kindImage), name)
		}
	})

	It("should mark everything else unsupported", func() {
		Expect(classifyDocument("invoice.docx")).To(Equal(kindUnsupported))
		Expect(classifyDocument("invoice")).To(Equal(kindUnsupported))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should recognize the ftyp heic signature", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		data = append(data, make([]byte, 8)...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should reject other data", func() {
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		Expect(isHEICFormat([]byte(strings.Repeat("x", 16)))).To(BeFalse())
	})
})
