// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package moments

import "testing"

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Summary
		wantErr bool
	}{
		{
			name: "strict json",
			text: `{"title":"Person at door","description":"A person approaches the front door."}`,
			want: Summary{Title: "Person at door", Description: "A person approaches the front door."},
		},
		{
			name: "surrounding prose",
			text: "Sure! Here is the summary:\n{\"title\":\"Cat\",\"description\":\"A cat walks by.\"}\nHope that helps.",
			want: Summary{Title: "Cat", Description: "A cat walks by."},
		},
		{
			name: "code fence",
			text: "```json\n{\"title\":\"Delivery\",\"description\":\"A courier leaves a package.\"}\n```",
			want: Summary{Title: "Delivery", Description: "A courier leaves a package."},
		},
		{
			name: "braces inside string values",
			text: `{"title":"Odd {chars}","description":"Contains \"quotes\" and {braces}."}`,
			want: Summary{Title: "Odd {chars}", Description: `Contains "quotes" and {braces}.`},
		},
		{
			name:    "no json at all",
			text:    "I could not determine a summary.",
			wantErr: true,
		},
		{
			name:    "unterminated object",
			text:    `prefix {"title":"x","description":"y"`,
			wantErr: true,
		},
		{
			name:    "missing description",
			text:    `{"title":"only a title"}`,
			wantErr: true,
		},
		{
			name:    "whitespace-only title",
			text:    `{"title":"  ","description":"something"}`,
			wantErr: true,
		},
		{
			name:    "non-string fields",
			text:    `{"title":42,"description":true}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractSummary(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractSummary(%q) = %+v, want error", tt.text, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractSummary(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Fatalf("ExtractSummary(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
