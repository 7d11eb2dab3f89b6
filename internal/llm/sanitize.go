package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in reply")

// ExtractJSONObject strips markdown code fences and any prose around the reply
// and returns the outermost JSON object.
func ExtractJSONObject(reply string) ([]byte, error) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "\ufeff")

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// drop the info string: ```json, ```JSON, ```javascript
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeft(s, "jsonJSON")
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return nil, errNoJSONObject
	}
	obj := []byte(s[start : end+1])
	if !json.Valid(obj) {
		return nil, errors.New("reply is not valid JSON")
	}
	return obj, nil
}
