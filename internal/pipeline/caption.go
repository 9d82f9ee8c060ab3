// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// captionPrefixes are lead-ins vision-language workers habitually produce.
// Matched case-insensitively against the start of the caption.
var captionPrefixes = []string{
	"the image shows",
	"this image shows",
	"the image depicts",
	"this image depicts",
	"the picture shows",
	"the photo shows",
	"this is an image of",
	"this is a picture of",
	"in this image,",
	"in the image,",
}

// CleanCaption strips model boilerplate from a caption and re-capitalizes
// the remainder. Stripping is applied once; a caption that is nothing but
// boilerplate collapses to the empty string.
func CleanCaption(text string) string {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	for _, prefix := range captionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			text = strings.TrimLeft(text[len(prefix):], " ,")
			break
		}
	}
	if text == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(text)
	return string(unicode.ToUpper(r)) + text[size:]
}
