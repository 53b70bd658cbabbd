package compiler

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseJSONWithFallback implements spec 4.4 step 5's three-stage parse:
// a raw JSON object parse, then the first fenced ```json block, then the
// first balanced {...} substring. Returns nil if none of the three yield a
// JSON object.
func parseJSONWithFallback(text string) map[string]any {
	if obj, ok := tryParseObject(text); ok {
		return obj
	}
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		if obj, ok := tryParseObject(m[1]); ok {
			return obj
		}
	}
	if span, ok := firstBalancedBraceSpan(text); ok {
		if obj, ok := tryParseObject(span); ok {
			return obj
		}
	}
	return nil
}

func tryParseObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// firstBalancedBraceSpan returns the substring spanning the first
// brace-balanced {...} region in text, tolerating braces nested inside
// quoted strings.
func firstBalancedBraceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
