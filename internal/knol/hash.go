package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/memoryflow/internal/domain"
)

// Normalize concatenates the note's fields after cleaning each part.
// Title and body are trimmed, lowercased and get unix line endings.
// The image URL is only trimmed, since URL paths are case sensitive.
func Normalize(note domain.Note) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	t := normalizePart(note.Title)
	b := normalizePart(note.Body)
	i := strings.TrimSpace(note.ImageURL)

	// Fields are newline-joined so "ab"+"c" and "a"+"bc" hash differently.
	return strings.Join([]string{t, b, i}, "\n")
}

// Hash takes a note, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(note domain.Note) string {
	normalized := Normalize(note)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
