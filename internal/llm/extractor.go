package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/schema"
)

// ExtractorConfig tunes the provider-neutral extraction step.
type ExtractorConfig struct {
	MaxInputChars     int     // default DefaultMaxInputChars
	RequestsPerSecond float64 // 0 disables client-side limiting
	Burst             int     // default 1
}

// Extractor turns contract text into schema-shaped structured data using a Completer.
type Extractor struct {
	completer  Completer
	fields     []schema.Field
	validators fieldValidators
	limiter    *rate.Limiter
	cfg        ExtractorConfig
	logger     *slog.Logger
}

func NewExtractor(c Completer, cfg ExtractorConfig, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	fields := schema.Fields()
	validators, err := compileFieldValidators(fields)
	if err != nil {
		return nil, err
	}
	e := &Extractor{
		completer:  c,
		fields:     fields,
		validators: validators,
		cfg:        cfg,
		logger:     logger,
	}
	if cfg.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return e, nil
}

// ExtractFields implements FieldExtractor. Every schema field is present in the
// returned data; fields the model left out or got wrong are absent.
func (e *Extractor) ExtractFields(ctx context.Context, req ExtractRequest) (Extraction, error) {
	rid := uuid.New().String()
	start := time.Now()
	out := Extraction{Model: e.completer.Name()}

	e.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", out.Model,
		"filename", req.Filename,
		"text_len", len(req.Text),
	)
	if strings.TrimSpace(req.Text) == "" {
		return out, &SchemaMismatchError{Reason: "no contract text to extract from"}
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return out, &ServiceError{Provider: out.Model, Err: err}
		}
	}

	prompt := Prompt{
		System: BuildSystemPrompt(e.fields),
		User:   BuildUserPrompt(req, e.cfg.MaxInputChars),
		Schema: schema.ResponseSchema(),
	}
	reply, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.logger.Error("llm.extract.provider_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, err
	}

	raw, err := ExtractJSONObject(reply)
	if err != nil {
		e.logger.Error("llm.extract.no_json",
			"req_id", rid, "error", err, "reply", truncate(reply, 500),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, &SchemaMismatchError{Reason: "reply is not a JSON object", Err: err}
	}
	out.Raw = raw

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, &SchemaMismatchError{Reason: "decode reply", Err: err}
	}
	flat := flatten(doc)
	out.Dropped = flat.dropped
	if flat.matched == 0 {
		e.logger.Error("llm.extract.schema_mismatch",
			"req_id", rid, "dropped", flat.dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, &SchemaMismatchError{Reason: "reply has no recognised fields"}
	}

	out.Data = make(entity.StructuredData, len(e.fields))
	for _, f := range e.fields {
		c, ok := flat.fields[f.Name]
		if !ok {
			out.Data[f.Name] = entity.Absent()
			continue
		}
		v, present := coerce(f, c.value)
		if !present {
			out.Data[f.Name] = entity.Absent()
			continue
		}
		if err := e.validators.validate(f.Name, v); err != nil {
			e.logger.Debug("llm.extract.field_invalid", "req_id", rid, "field", f.Name, "error", err)
			out.Invalid = append(out.Invalid, f.Name)
			out.Data[f.Name] = entity.Absent()
			continue
		}
		out.Data[f.Name] = entity.FieldValue{Value: v, Confidence: c.confidence, Present: true}
	}

	if len(out.Dropped) > 0 || len(out.Invalid) > 0 {
		e.logger.Warn("llm.extract.lenient_applied",
			"req_id", rid,
			"dropped", out.Dropped,
			"invalid", out.Invalid,
		)
	}
	e.logger.Info("llm.extract.ok",
		"req_id", rid,
		"model", out.Model,
		"present", out.Data.PresentCount(),
		"of", len(e.fields),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
