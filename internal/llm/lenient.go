package llm

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/schema"
)

// UnscoredConfidence is used for values the model returned without any confidence.
const UnscoredConfidence = 0.5

// candidate is one schema field as returned by the model, before validation.
type candidate struct {
	value      any
	confidence float64
}

type flattened struct {
	fields  map[string]candidate
	dropped []string
	matched int
}

var (
	reNumber  = regexp.MustCompile(`-?\d+(\.\d+)?`)
	nullWords = []string{"", "null", "none", "n/a", "na", "not specified", "not found", "unknown", "-"}
	currency  = map[string]string{"$": "USD", "€": "EUR", "£": "GBP", "¥": "JPY"}
)

// flatten accepts {"fields": {...}}, a flat object keyed by field name, or
// objects grouped by category carrying a confidence_score each.
func flatten(doc map[string]any) flattened {
	out := flattened{fields: map[string]candidate{}}
	if inner, ok := doc["fields"].(map[string]any); ok {
		doc = inner
	}
	out.collect(doc, UnscoredConfidence, "")
	liftParties(out.fields)
	slices.Sort(out.dropped)
	return out
}

func (f *flattened) collect(m map[string]any, fallback float64, prefix string) {
	for _, key := range slices.Sorted(maps.Keys(m)) {
		raw := m[key]
		k := strings.ToLower(strings.TrimSpace(key))
		if k == "confidence_score" || k == "confidence" {
			continue
		}
		if field, ok := schema.Lookup(k); ok {
			f.matched++
			c := entryOf(raw, fallback)
			if prev, seen := f.fields[field.Name]; !seen || isBlank(prev.value) {
				f.fields[field.Name] = c
			}
			continue
		}
		if _, ok := constants.Canonicalize(k); ok {
			if sub, ok := raw.(map[string]any); ok {
				f.collect(sub, confidenceOf(sub["confidence_score"], fallback), prefix+k+".")
				continue
			}
		}
		f.dropped = append(f.dropped, prefix+key)
	}
}

func entryOf(raw any, fallback float64) candidate {
	switch t := raw.(type) {
	case map[string]any:
		if v, ok := t["value"]; ok {
			return candidate{value: v, confidence: confidenceOf(t["confidence"], fallback)}
		}
		if cs, ok := t["confidence_score"]; ok {
			obj := maps.Clone(t)
			delete(obj, "confidence_score")
			return candidate{value: obj, confidence: confidenceOf(cs, fallback)}
		}
	case []any:
		// per-item confidence_score, as in parties and line items
		var sum float64
		var n int
		items := make([]any, 0, len(t))
		for _, it := range t {
			obj, ok := it.(map[string]any)
			if !ok {
				items = append(items, it)
				continue
			}
			if cs, ok := obj["confidence_score"]; ok {
				sum += confidenceOf(cs, fallback)
				n++
				obj = maps.Clone(obj)
				delete(obj, "confidence_score")
			}
			items = append(items, obj)
		}
		if n > 0 {
			return candidate{value: items, confidence: sum / float64(n)}
		}
		return candidate{value: items, confidence: fallback}
	}
	return candidate{value: raw, confidence: fallback}
}

func confidenceOf(v any, fallback float64) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case json.Number:
		p, err := t.Float64()
		if err != nil {
			return fallback
		}
		f = p
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		p, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return fallback
		}
		if pct {
			p /= 100
		}
		f = p
	default:
		return fallback
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	return min(max(f, 0), 1)
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return slices.Contains(nullWords, strings.ToLower(strings.TrimSpace(t)))
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// coerce bends common near-misses into the field's JSON type. The second
// return value is false when the model reported the field as absent.
func coerce(f schema.Field, v any) (any, bool) {
	if isBlank(v) {
		return nil, false
	}
	switch f.Type {
	case schema.TypeString:
		s, ok := asString(v)
		if !ok {
			return v, true
		}
		if f.Name == "currency" {
			s = strings.ToUpper(s)
			if code, ok := currency[s]; ok {
				s = code
			}
		}
		return s, true
	case schema.TypeStringList:
		list := asList(v)
		out := make([]any, 0, len(list))
		for _, it := range list {
			if isBlank(it) {
				continue
			}
			if s, ok := asString(it); ok {
				out = append(out, s)
			} else {
				out = append(out, it)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case schema.TypeNumber:
		switch t := v.(type) {
		case float64:
			return t, true
		case json.Number:
			if n, err := t.Float64(); err == nil {
				return n, true
			}
		case string:
			m := reNumber.FindString(strings.ReplaceAll(t, ",", ""))
			if n, err := strconv.ParseFloat(m, 64); err == nil {
				return n, true
			}
		}
		return v, true
	case schema.TypeBoolean:
		if s, ok := v.(string); ok {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "true", "yes", "y":
				return true, true
			case "false", "no", "n":
				return false, true
			}
		}
		return v, true
	case schema.TypeObject:
		switch t := v.(type) {
		case string:
			return map[string]any{"name": strings.TrimSpace(t)}, true
		case map[string]any:
			obj := compact(t)
			if len(obj) == 0 {
				return nil, false
			}
			return obj, true
		}
		return v, true
	case schema.TypeObjectList:
		list := asList(v)
		out := make([]any, 0, len(list))
		for _, it := range list {
			obj, ok := it.(map[string]any)
			if !ok {
				out = append(out, it)
				continue
			}
			obj = compact(obj)
			if _, has := obj["name"]; !has && f.Name == "parties" {
				if n, ok := obj["legal_entity_name"]; ok {
					obj["name"] = n
				}
			}
			if len(obj) > 0 {
				out = append(out, obj)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	}
	return v, true
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := asString(it)
			if !ok {
				return "", false
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; "), len(parts) > 0
	}
	return "", false
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{v}
}

// compact drops blank members of an object.
func compact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if !isBlank(v) {
			out[k] = v
		}
	}
	return out
}

// liftParties fills the name and signatory lists from the party objects when
// the model only nested them there.
func liftParties(fields map[string]candidate) {
	p, ok := fields["parties"]
	if !ok {
		return
	}
	parties, ok := p.value.([]any)
	if !ok {
		return
	}
	var names, signatories []any
	for _, it := range parties {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := obj["legal_entity_name"].(string); ok && !isBlank(s) {
			names = append(names, s)
		}
		for _, sig := range asList(obj["authorized_signatories"]) {
			if s, ok := sig.(string); ok && !isBlank(s) {
				signatories = append(signatories, s)
			}
		}
	}
	if c, ok := fields["legal_entity_names"]; (!ok || isBlank(c.value)) && len(names) > 0 {
		fields["legal_entity_names"] = candidate{value: names, confidence: p.confidence}
	}
	if c, ok := fields["authorized_signatories"]; (!ok || isBlank(c.value)) && len(signatories) > 0 {
		fields["authorized_signatories"] = candidate{value: signatories, confidence: p.confidence}
	}
}
