package pdftext

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	gotPath string
	text    string
	err     error
}

func (f *fakeExtractor) ExtractText(_ context.Context, pdfPath string) (string, error) {
	f.gotPath = pdfPath
	return f.text, f.err
}

func TestIsScanned(t *testing.T) {
	assert.True(t, IsScanned(""))
	assert.True(t, IsScanned("   \n\t  "))
	assert.True(t, IsScanned("P 1"))
	assert.False(t, IsScanned(strings.Repeat("periodic transaction report ", 10)))
}

func TestExtractBytes_RoundTripsThroughTempFile(t *testing.T) {
	fake := &fakeExtractor{text: "extracted"}
	got, err := ExtractBytes(context.Background(), fake, []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "extracted", got)

	// The temp file is cleaned up after extraction.
	require.NotEmpty(t, fake.gotPath)
	_, statErr := os.Stat(fake.gotPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewPdfToText_DefaultBinary(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/opt/poppler/bin/pdftotext")
	assert.Equal(t, "/opt/poppler/bin/pdftotext", p.binPath)
}

func TestExtractText_MissingBinary(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), "whatever.pdf")
	assert.Error(t, err)
}
