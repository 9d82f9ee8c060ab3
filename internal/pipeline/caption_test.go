// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package pipeline

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestCleanCaption(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a cat on a fence", "A cat on a fence"},
		{"boilerplate prefix", "The image shows a cat on a fence.", "A cat on a fence."},
		{"case insensitive", "THIS IMAGE DEPICTS two cars.", "Two cars."},
		{"comma lead-in", "In this image, snow is falling.", "Snow is falling."},
		{"prefix only once", "The image shows the image shows twice", "The image shows twice"},
		{"surrounding whitespace", "  the photo shows a dog  ", "A dog"},
		{"boilerplate only", "the picture shows", ""},
		{"empty", "", ""},
		{"mid-sentence untouched", "A sign reads: the image shows nothing", "A sign reads: the image shows nothing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanCaption(tc.in); got != tc.want {
				t.Fatalf("CleanCaption(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEmbeddingBytesLayout(t *testing.T) {
	out := embeddingBytes([]float64{1.5, -2.0})
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	first := math.Float32frombits(binary.LittleEndian.Uint32(out[:4]))
	second := math.Float32frombits(binary.LittleEndian.Uint32(out[4:]))
	if first != 1.5 || second != -2.0 {
		t.Fatalf("decoded = %v, %v", first, second)
	}
}
