package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

type stubRunner struct {
	run   func(name string, args ...string) ([]byte, []byte, error)
	calls []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)
	return s.run(name, args...)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

const contractText = `MASTER SERVICES AGREEMENT
This Agreement is entered into on 2024-03-01 between Acme Corp ("Client") and Globex LLC ("Vendor").
The total contract value is USD 120,000.00 payable Net 30.`

func TestExtractEmptyDocument(t *testing.T) {
	e := newExtractor(Config{}, &stubRunner{}, nil)
	_, err := e.Extract(t.Context(), Document{})

	var ue *UnsupportedDocumentError
	require.ErrorAs(t, err, &ue)
	assert.False(t, common.IsRetryable(err))
}

func TestExtractRejectsNonDocuments(t *testing.T) {
	e := newExtractor(Config{}, &stubRunner{}, nil)
	_, err := e.Extract(t.Context(), Document{Data: []byte("just some plain text"), Filename: "notes.txt"})

	var ue *UnsupportedDocumentError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Reason, "text/plain")
}

func TestExtractCorruptPDF(t *testing.T) {
	r := &stubRunner{}
	e := newExtractor(Config{}, r, nil)
	_, err := e.Extract(t.Context(), Document{Data: []byte("%PDF-1.7\nthis is not really a pdf"), Filename: "broken.pdf"})

	var ue *UnsupportedDocumentError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "unsupported_document", ue.Kind())
	assert.Empty(t, r.calls, "no external tools for unreadable input")
}

func TestExtractImage(t *testing.T) {
	r := &stubRunner{run: func(name string, args ...string) ([]byte, []byte, error) {
		assert.Equal(t, "tesseract", name)
		assert.Equal(t, "stdout", args[1])
		return []byte(contractText + "\n-----\n"), nil, nil
	}}
	e := newExtractor(Config{}, r, nil)

	res, err := e.Extract(t.Context(), Document{Data: pngHeader, Filename: "scan.png"})
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, 1, res.Pages)
	assert.False(t, res.LowQuality)
	assert.NotContains(t, res.Text, "-----")
	assert.Greater(t, res.Confidence, float32(0.5))
}

func TestExtractImageShortTextIsLowQuality(t *testing.T) {
	r := &stubRunner{run: func(string, ...string) ([]byte, []byte, error) {
		return []byte("Page 1"), nil, nil
	}}
	res, err := newExtractor(Config{}, r, nil).Extract(t.Context(), Document{Data: pngHeader})
	require.NoError(t, err)
	assert.True(t, res.LowQuality)
}

func TestExtractImageToolFailureIsRetryable(t *testing.T) {
	r := &stubRunner{run: func(string, ...string) ([]byte, []byte, error) {
		return nil, []byte("Error opening data file"), errors.New("exit status 1")
	}}
	_, err := newExtractor(Config{}, r, nil).Extract(t.Context(), Document{Data: pngHeader})

	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.True(t, common.IsRetryable(err))
	assert.Equal(t, "extraction_error", common.KindOf(err))
}

func TestMeanTSVConfidence(t *testing.T) {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	rows := []string{
		header,
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tAgreement",
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tbetween",
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t",
	}
	assert.InDelta(t, 0.8, meanTSVConfidence(strings.Join(rows, "\n")), 1e-6)
	assert.Zero(t, meanTSVConfidence(header))
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Zero(t, heuristicConfidence("   "))
	low := heuristicConfidence("lorem ipsum")
	high := heuristicConfidence(contractText)
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, float32(1))
}

func TestNormalize(t *testing.T) {
	in := "Line one  \r\n\tindented\r\n\n\n\nLine two\fPage two  "
	assert.Equal(t, "Line one\n indented\n\nLine two\n\nPage two", Normalize(in))
	assert.Equal(t, "", Normalize(""))
}
