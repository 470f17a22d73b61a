package ai

import "encoding/json"

// FirstJSON returns the first balanced JSON value in text that starts with
// open ('{' or '[') and decodes cleanly. Brackets inside string literals are
// ignored, so nested objects and prose around the value do not confuse it.
func FirstJSON(text string, open byte) (string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != open {
			continue
		}
		end, ok := balancedEnd(text, start)
		if !ok {
			continue
		}
		candidate := text[start:end]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// balancedEnd scans from the opener at start and returns the index just past
// its matching closer.
func balancedEnd(text string, start int) (int, bool) {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
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
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
