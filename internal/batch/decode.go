package batch

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/extraction-service/internal/model"
)

// Decode normalizes raw worker output into a tagged variant. Workers may
// return a bare value, a JSON document, or a JSON document wrapped in a
// fenced code block; anything that fails to parse is kept verbatim as an
// opaque raw payload instead of raising.
func Decode(text string) model.Output {
	content := stripFence(strings.TrimSpace(text))

	var value any
	if err := json.Unmarshal([]byte(content), &value); err != nil {
		return model.Output{Kind: model.OutputRaw, Raw: text}
	}

	switch v := value.(type) {
	case map[string]any:
		if inner, ok := v["extracted_data"]; ok {
			if records, ok := recordList(inner); ok {
				return model.Output{Kind: model.OutputStructured, Records: records}
			}
			return model.Output{Kind: model.OutputRaw, Raw: text}
		}
		return model.Output{Kind: model.OutputStructured, Records: []map[string]any{v}}
	case []any:
		if records, ok := recordList(v); ok {
			return model.Output{Kind: model.OutputStructured, Records: records}
		}
	}
	return model.Output{Kind: model.OutputRaw, Raw: text}
}

// recordList converts a decoded JSON array into a list of records. All
// elements must be objects; anything else disqualifies the list.
func recordList(v any) ([]map[string]any, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, m)
	}
	return records, true
}

// stripFence removes an enclosing markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	body = strings.TrimPrefix(body, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		first := strings.TrimSpace(body[:idx])
		// Drop a language tag like "json" on the opening fence line.
		if first == "" || !strings.ContainsAny(first, " \t{[\"") {
			body = body[idx+1:]
		}
	}
	return strings.TrimSpace(body)
}
