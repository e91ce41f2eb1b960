package invoice

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// documentKind classifies a document by its file extension
type documentKind int

const (
	kindUnsupported documentKind = iota
	kindPDF
	kindImage
)

func classifyDocument(filename string) documentKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return kindPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".heic", ".heif":
		return kindImage
	default:
		return kindUnsupported
	}
}

// probeDocumentText attempts direct text extraction from a PDF. It is
// best-effort context for the extraction prompt: any failure yields an
// empty string, never an error.
func probeDocumentText(pdfData []byte) string {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return ""
	}
	defer doc.Close()

	var text strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		pageText, err := doc.Text(page)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	return strings.TrimSpace(text.String())
}

// pdfToImage renders the first page of a PDF as a PNG image.
// Invoices are almost always single page, so one render is enough.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts a scanned invoice image to PNG for the vision model
func imageToPNG(imageData []byte) ([]byte, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (common for phone photos of invoices) is not supported
	// by Go's standard image package
	if isHEICFormat(imageData) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for the HEIC/HEIF ftyp box signature
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}
