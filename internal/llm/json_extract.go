package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencedBlockRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)```")

// ExtractJSON pulls the first JSON object out of a raw model response. The
// response may wrap the JSON in a fenced code block or surround it with
// prose; extraction takes the first balanced {...} span. Returns "" when no
// object is present.
func ExtractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed
	}

	if m := fencedBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		if span := balancedObject(m[1]); span != "" {
			return span
		}
	}
	return balancedObject(raw)
}

// balancedObject scans for the first '{' and returns the span up to its
// matching '}', tracking string literals and escapes so braces inside
// strings don't count.
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	// Unbalanced: hand back the tail and let repair complete it.
	return s[start:]
}

// DecodeResponse extracts the JSON object from a raw model response,
// repairs it if malformed, and unmarshals it into target.
func DecodeResponse(raw string, target interface{}) error {
	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return fmt.Errorf("no JSON object found in model response")
	}

	if err := json.Unmarshal([]byte(jsonStr), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		return fmt.Errorf("repairing model JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("parsing repaired model JSON: %w", err)
	}
	return nil
}
