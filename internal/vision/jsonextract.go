package vision

import "encoding/json"

// FirstJSONObject returns the first balanced {...} substring of text that parses as a JSON
// object. Braces inside string literals are ignored; quotes outside any brace are prose.
//
// The text is scanned once. Each top-level span is validated when it closes, and spans
// nested under a brace that never closes are tried at the end. An object nested inside
// a closed but invalid span is not considered.
func FirstJSONObject(text string) (string, bool) {
	type span struct{ start, end int }

	var (
		open     []int    // offsets of unclosed '{'
		children [][]span // closed spans directly under each open brace
		inString bool
		escaped  bool
	)

	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = len(open) > 0
		case '{':
			open = append(open, i)
			children = append(children, nil)
		case '}':
			if len(open) == 0 {
				continue
			}
			sp := span{start: open[len(open)-1], end: i + 1}
			open = open[:len(open)-1]
			children = children[:len(children)-1]
			if len(open) == 0 {
				if candidate := text[sp.start:sp.end]; json.Valid([]byte(candidate)) {
					return candidate, true
				}
				continue
			}
			children[len(children)-1] = append(children[len(children)-1], sp)
		}
	}

	for _, spans := range children {
		for _, sp := range spans {
			if candidate := text[sp.start:sp.end]; json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

// ExtractFirstJSONObject decodes the first JSON object embedded in free text.
func ExtractFirstJSONObject(text string) (map[string]any, bool) {
	raw, ok := FirstJSONObject(text)
	if !ok {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}
