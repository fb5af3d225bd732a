// Package extract defines the text-extraction collaborator contract and its
// PDF implementation. The pipeline's Parsing stage depends only on the
// Extractor interface so tests can substitute fakes.
package extract

import (
	"context"
	"regexp"
	"strings"
)

// Page is one extracted document page in reading order.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the raw extracted text for the page.
	Text string

	// HasTables indicates the page appears to contain tabular layout.
	HasTables bool

	// HasImages indicates the page contains embedded images.
	HasImages bool
}

// Metadata describes document-level properties discovered during extraction.
type Metadata struct {
	Title     string
	Author    string
	PageCount int
}

// Document is the extraction result: ordered pages plus metadata.
type Document struct {
	Pages    []Page
	Metadata Metadata
}

// Extractor converts raw file bytes into ordered pages.
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Extract parses file bytes into a Document.
	// It fails when the file cannot be parsed at all; an empty page list is
	// returned as a valid (if useless) result and rejected by the caller.
	Extract(ctx context.Context, data []byte) (*Document, error)
}

// whitespaceRun collapses repeated whitespace so downstream tokenization sees
// clean text.
var whitespaceRun = regexp.MustCompile(`[ \t\r\f]+`)

// controlChars matches non-printable characters that PDF extraction leaks.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

// SanitizeText normalizes extracted text: strips control characters and
// collapses whitespace runs while keeping line structure.
func SanitizeText(text string) string {
	text = controlChars.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// looksTabular reports whether a line of text resembles a table row:
// several column-like gaps or many numeric cells.
func looksTabular(line string) bool {
	if strings.Count(line, "  ") >= 3 || strings.Count(line, "\t") >= 2 {
		return true
	}
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return false
	}
	numeric := 0
	for _, f := range fields {
		if strings.IndexFunc(f, func(r rune) bool { return r < '0' || r > '9' }) == -1 {
			numeric++
		}
	}
	return numeric*2 >= len(fields)
}

// DetectTables scans page text for tabular layout.
func DetectTables(text string) bool {
	tabular := 0
	for _, line := range strings.Split(text, "\n") {
		if looksTabular(line) {
			tabular++
			if tabular >= 3 {
				return true
			}
		}
	}
	return false
}
