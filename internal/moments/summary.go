// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package moments

import (
	"errors"
	"strings"

	json "github.com/goccy/go-json"
)

// Summary is the parsed result of a summarization reply.
type Summary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var (
	errNoJSON        = errors.New("no balanced JSON object in reply")
	errMissingFields = errors.New("summary missing title or description")
)

// ExtractSummary parses a vision-language reply leniently. Models are asked
// for strict JSON but often wrap it in prose or code fences, so the text is
// scanned for the first balanced JSON object and only that span is decoded.
func ExtractSummary(text string) (Summary, error) {
	span, ok := firstBalancedObject(text)
	if !ok {
		return Summary{}, errNoJSON
	}

	var s Summary
	if err := json.Unmarshal([]byte(span), &s); err != nil {
		return Summary{}, err
	}
	if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Description) == "" {
		return Summary{}, errMissingFields
	}
	return s, nil
}

// firstBalancedObject returns the first top-level {...} span in text,
// tracking string literals and escapes so braces inside values do not
// confuse the depth count.
func firstBalancedObject(text string) (string, bool) {
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
