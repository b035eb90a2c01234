package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedNotes int
		expectedT     string
		expectedB     string
		expectedI     string
	}{
		{
			name:          "Simple title and body",
			input:         "T: Capital of France\nB: Paris",
			expectedNotes: 1,
			expectedT:     "Capital of France",
			expectedB:     "Paris",
		},
		{
			name:          "Body only",
			input:         "B: Remember to breathe",
			expectedNotes: 1,
			expectedB:     "Remember to breathe",
		},
		{
			name:          "Title, body and image",
			input:         "T: Heart\nB: Four chambers\nI: https://example.com/heart.png",
			expectedNotes: 1,
			expectedT:     "Heart",
			expectedB:     "Four chambers",
			expectedI:     "https://example.com/heart.png",
		},
		{
			name: "Multiline body",
			input: `
T: Primary colors
B: Red
Blue
Yellow
`,
			expectedNotes: 1,
			expectedT:     "Primary colors",
			expectedB:     "Red\nBlue\nYellow",
		},
		{
			name: "Two notes with separator",
			input: `
T: First
B: First body
---
B: Second body
`,
			expectedNotes: 2,
		},
		{
			name: "New title starts a new note",
			input: `
T: First
B: First body
T: Second
B: Second body
`,
			expectedNotes: 2,
		},
		{
			name:          "Title without body is dropped",
			input:         "T: Lonely title\n---\n",
			expectedNotes: 0,
		},
		{
			name:          "No notes, just text",
			input:         "This is a file with no notes.",
			expectedNotes: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "T:Title\nB:Body",
			expectedNotes: 1,
			expectedT:     "Title",
			expectedB:     "Body",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := strings.NewReader(tc.input)
			notes, err := Parse(r)
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(notes) != tc.expectedNotes {
				t.Fatalf("Expected %d notes, but got %d", tc.expectedNotes, len(notes))
			}

			if tc.expectedNotes == 1 {
				note := notes[0]
				if note.Title != tc.expectedT {
					t.Errorf("Expected Title to be '%s', but got '%s'", tc.expectedT, note.Title)
				}
				if note.Body != tc.expectedB {
					t.Errorf("Expected Body to be '%s', but got '%s'", tc.expectedB, note.Body)
				}
				if note.ImageURL != tc.expectedI {
					t.Errorf("Expected ImageURL to be '%s', but got '%s'", tc.expectedI, note.ImageURL)
				}
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("T: Go\nB: A language\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	notes, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() returned an unexpected error: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "Go" {
		t.Errorf("ParseFile() = %+v, want one note titled Go", notes)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("ParseFile() should fail for a missing file")
	}
}
