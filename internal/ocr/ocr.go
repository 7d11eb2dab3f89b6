package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/contract-intelligence/constants"
)

// Document is the input of a text extraction.
type Document struct {
	Data     []byte
	MimeType string // hint; the bytes are sniffed regardless
	Filename string
}

// Result is the outcome of a text extraction.
type Result struct {
	Text       string
	Pages      int
	Method     string // "pdf-text" | "pdf-ocr" | "pdftotext" | "image-ocr" | "ocr-space"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
	// LowQuality is set when the text is shorter than the configured minimum.
	LowQuality bool
}

// TextExtractor converts document bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (Result, error)
}

// DefaultMinTextChars is the default low-quality threshold.
const DefaultMinTextChars = 50

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool
	MinTextChars        int // below this the text layer is not trusted; default 50
}

// Extractor runs text extraction locally: the PDF text layer first, then the
// poppler/tesseract toolchain for scanned pages.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	return newExtractor(cfg, execRunner{}, logger)
}

func newExtractor(cfg Config, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Extract picks a strategy based on the sniffed content type.
func (e *Extractor) Extract(ctx context.Context, doc Document) (Result, error) {
	start := time.Now()
	if len(doc.Data) == 0 {
		return Result{}, &UnsupportedDocumentError{Reason: "empty document"}
	}
	mt := mimetype.Detect(doc.Data)
	e.logger.Debug("ocr.extract.start", "filename", doc.Filename, "mime", mt.String(), "bytes", len(doc.Data))

	var (
		res Result
		err error
	)
	switch {
	case mt.Is(constants.MIMEPDF):
		res, err = e.extractPDF(ctx, doc.Data)
	case strings.HasPrefix(mt.String(), "image/"):
		res, err = e.extractImage(ctx, doc.Data, mt.Extension())
	default:
		e.logger.Error("ocr.extract.unsupported", "filename", doc.Filename, "mime", mt.String())
		return Result{}, &UnsupportedDocumentError{Reason: "content type " + mt.String()}
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	assess(&res, e.cfg.MinTextChars)

	e.logger.Info("ocr.extract.ok",
		"filename", doc.Filename,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"low_quality", res.LowQuality,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	text, pages, err := pdfTextLayer(data)
	if err != nil {
		return Result{}, &UnsupportedDocumentError{Reason: "unreadable pdf", Err: err}
	}
	if len([]rune(strings.TrimSpace(text))) >= e.cfg.MinTextChars {
		return Result{Text: text, Pages: pages, Method: "pdf-text"}, nil
	}

	e.logger.Info("ocr.pdf.text_layer_thin", "chars", len(text), "pages", pages)
	path, cleanup, err := writeTemp(data, ".pdf")
	if err != nil {
		return Result{}, &ExtractionError{Op: "spool", Err: err}
	}
	defer cleanup()

	ocrText, ocrPages, warns, ocrErr := e.pdfToOCR(ctx, path)
	if ocrErr == nil {
		return Result{Text: ocrText, Pages: ocrPages, Method: "pdf-ocr", Language: e.cfg.TesseractLang, Warnings: warns}, nil
	}
	e.logger.Warn("ocr.pdf.rasterize_failed", "error", ocrErr)

	ptText, ptPages, ptWarns, ptErr := e.pdfToText(ctx, path)
	if ptErr != nil {
		if ctx.Err() != nil {
			return Result{}, &ExtractionError{Op: "pdf-ocr", Err: ctx.Err()}
		}
		// A thin but valid text layer is still better than nothing.
		if strings.TrimSpace(text) != "" {
			return Result{Text: text, Pages: pages, Method: "pdf-text", Warnings: append(warns, ptWarns...)}, nil
		}
		return Result{Warnings: append(warns, ptWarns...)}, &ExtractionError{Op: "pdf-ocr", Err: ocrErr}
	}
	return Result{Text: ptText, Pages: ptPages, Method: "pdftotext", Warnings: append(warns, ptWarns...)}, nil
}
