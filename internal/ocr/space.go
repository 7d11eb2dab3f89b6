package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
)

// DefaultSpaceEndpoint is the OCR.space parse endpoint.
const DefaultSpaceEndpoint = "https://api.ocr.space/parse/image"

// SpaceConfig for the OCR.space client.
type SpaceConfig struct {
	APIKey       string
	Endpoint     string        // default DefaultSpaceEndpoint
	Language     string        // default "eng"
	Engine       int           // default 2
	Timeout      time.Duration // default 60s
	MinTextChars int           // default 50
}

// SpaceClient extracts text through the OCR.space API.
type SpaceClient struct {
	cfg    SpaceConfig
	http   *http.Client
	logger *slog.Logger
}

func NewSpaceClient(cfg SpaceConfig, logger *slog.Logger) *SpaceClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSpaceEndpoint
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.Engine <= 0 {
		cfg.Engine = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = DefaultMinTextChars
	}
	return &SpaceClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

type spaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"` // string or []string
}

func (r spaceResponse) errorText() string {
	if len(r.ErrorMessage) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(r.ErrorMessage, &s); err == nil {
		return s
	}
	return string(r.ErrorMessage)
}

// Extract uploads the document and joins the parsed text of every page.
func (c *SpaceClient) Extract(ctx context.Context, doc Document) (Result, error) {
	start := time.Now()
	reqID := uuid.New().String()
	if len(doc.Data) == 0 {
		return Result{}, &UnsupportedDocumentError{Reason: "empty document"}
	}

	mt := mimetype.Detect(doc.Data)
	fileType, ok := spaceFileType(mt)
	if !ok {
		return Result{}, &UnsupportedDocumentError{Reason: "content type " + mt.String()}
	}

	body, contentType, err := c.form(doc, fileType)
	if err != nil {
		return Result{}, &ExtractionError{Op: "encode", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return Result{}, &ExtractionError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	c.logger.Info("ocr.space.request", "req_id", reqID, "filename", doc.Filename, "bytes", len(doc.Data))
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("ocr.space.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, &ExtractionError{Op: "request", Err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("ocr.space.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &ExtractionError{Op: "read response", Err: err}
	}
	c.logger.Info("ocr.space.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return Result{}, &ExtractionError{
			Op:         "request",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 512)),
		}
	}

	var parsed spaceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, &ExtractionError{Op: "decode", Err: err}
	}
	if parsed.IsErroredOnProcessing {
		msg := parsed.errorText()
		c.logger.Warn("ocr.space.processing_error", "req_id", reqID, "error", msg)
		if transientSpaceError(msg) {
			return Result{}, &ExtractionError{Op: "process", Err: errors.New(msg)}
		}
		return Result{}, &UnsupportedDocumentError{Reason: "rejected by OCR service", Err: errors.New(msg)}
	}

	var b strings.Builder
	for i, pr := range parsed.ParsedResults {
		if i > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(pr.ParsedText)
	}
	res := Result{
		Text:     b.String(),
		Pages:    len(parsed.ParsedResults),
		Method:   "ocr-space",
		Language: c.cfg.Language,
		Duration: time.Since(start),
	}
	assess(&res, c.cfg.MinTextChars)
	return res, nil
}

func (c *SpaceClient) form(doc Document, fileType string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"apikey", c.cfg.APIKey},
		{"language", c.cfg.Language},
		{"isOverlayRequired", "false"},
		{"filetype", fileType},
		{"detectOrientation", "true"},
		{"scale", "true"},
		{"isTable", "true"},
		{"OCREngine", strconv.Itoa(c.cfg.Engine)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	name := doc.Filename
	if name == "" {
		name = "document." + strings.ToLower(fileType)
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func spaceFileType(mt *mimetype.MIME) (string, bool) {
	switch {
	case mt.Is(constants.MIMEPDF):
		return "PDF", true
	case mt.Is("image/png"):
		return "PNG", true
	case mt.Is("image/jpeg"):
		return "JPG", true
	case mt.Is("image/tiff"):
		return "TIF", true
	default:
		return "", false
	}
}

func transientSpaceError(msg string) bool {
	m := strings.ToLower(msg)
	for _, p := range []string{"timed out", "timeout", "try again", "server", "busy", "rate limit"} {
		if strings.Contains(m, p) {
			return true
		}
	}
	return false
}
