package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/memoryflow/internal/domain"
)

const (
	titlePrefix = "T:"
	bodyPrefix  = "B:"
	imagePrefix = "I:"
	separator   = "---"
)

type state int

const (
	seeking state = iota
	readingTitle
	readingBody
	readingImage
)

// ParseFile reads a file from the given path and extracts all notes.
func ParseFile(path string) ([]domain.Note, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all notes.
// Notes are separated by a "---" line; a block without a body is dropped.
func Parse(r io.Reader) ([]domain.Note, error) {
	scanner := bufio.NewScanner(r)
	var notes []domain.Note
	var current domain.Note
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch currentState {
		case readingTitle:
			current.Title = content
		case readingBody:
			current.Body = content
		case readingImage:
			current.ImageURL = strings.TrimSpace(content)
		}
		block = nil
	}

	finishNote := func() {
		flushBlock()
		if strings.TrimSpace(current.Body) != "" {
			notes = append(notes, current)
		}
		current = domain.Note{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			finishNote()
			continue
		}

		prefix, next := "", seeking
		switch {
		case strings.HasPrefix(line, titlePrefix):
			prefix, next = titlePrefix, readingTitle
		case strings.HasPrefix(line, bodyPrefix):
			prefix, next = bodyPrefix, readingBody
		case strings.HasPrefix(line, imagePrefix):
			prefix, next = imagePrefix, readingImage
		}

		if next == seeking {
			// Only body text may continue over several lines.
			if currentState == readingBody {
				block = append(block, line)
			}
			continue
		}

		flushBlock()
		if next == readingTitle && current.Body != "" {
			// A title after a body starts a new note.
			finishNote()
		}
		currentState = next
		block = append(block, strings.TrimPrefix(line[len(prefix):], " "))
	}

	finishNote() // Finish the very last note in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return notes, nil
}
