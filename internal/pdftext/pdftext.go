// Package pdftext extracts text from disclosure PDFs using the pdftotext
// CLI tool.
package pdftext

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// scannedTextThreshold is the minimum extractable character count below
// which a document is treated as an image-only scan.
const scannedTextThreshold = 50

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

// PdfToText shells out to the pdftotext CLI.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the given PDF and returns stdout.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "pdftext: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// ExtractBytes writes the PDF to a temp file and extracts its text.
func ExtractBytes(ctx context.Context, ex Extractor, pdf []byte) (string, error) {
	tmp, err := os.CreateTemp("", "disclosure-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "pdftext: create temp file")
	}
	path := tmp.Name()
	defer os.Remove(filepath.Clean(path)) //nolint:errcheck

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return "", eris.Wrap(err, "pdftext: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "pdftext: close temp file")
	}

	return ex.ExtractText(ctx, path)
}

// IsScanned reports whether extracted text indicates an image-only document.
// Scanned filings carry almost no extractable text.
func IsScanned(text string) bool {
	return len(strings.TrimSpace(text)) < scannedTextThreshold
}
