package remote

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrUndecodable = errors.New("response body is not decodable")

// Normalize turns an upstream response body into canonical JSON. The API is
// inconsistent: plain JSON, JSON serialized as a string, or JSON embedded in
// otherwise non-JSON text (XML wrappers). Order of attempts:
//
//  1. direct JSON parse
//  2. if the body is a JSON string, parse the inner text again
//  3. extract the first balanced {...} or [...] substring and parse that
//
// If nothing parses, the trimmed raw text is returned alongside
// ErrUndecodable so callers can still surface it.
func Normalize(body []byte) ([]byte, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, ErrUndecodable
	}

	if out, ok := tryJSON(trimmed); ok {
		return out, nil
	}

	if inner, ok := extractBalanced(trimmed); ok {
		if out, ok := tryJSON(inner); ok {
			return out, nil
		}
	}

	return []byte(trimmed), ErrUndecodable
}

// DecodeInto normalizes the body and unmarshals it into v.
func DecodeInto(body []byte, v any) error {
	normalized, err := Normalize(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, v)
}

func tryJSON(s string) ([]byte, bool) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	// A JSON string is usually JSON serialized twice; unwrap once.
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if out, ok := tryJSON(strings.TrimSpace(inner)); ok {
			return out, true
		}
		return nil, false
	}
	return raw, true
}

// extractBalanced returns the first balanced {...} or [...] substring,
// respecting string literals and escapes.
func extractBalanced(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
