//go:build ignore

// Package main generates a synthetic PDF corpus for benchmarking ingestion.
// Usage: go run scripts/generate-test-corpus.go -files 100 -output testdata/bench
//
// The generated PDFs carry a real text layer (Helvetica, one content stream
// per page) so the full pipeline runs: extraction, chunking, embedding,
// indexing, storage.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 100, "Number of PDFs to generate")
	pagesPer  = flag.Int("pages", 5, "Pages per document")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"refund policy", "warranty coverage", "shipping windows", "data retention",
	"service level objectives", "incident response", "onboarding checklist",
	"expense reporting", "travel reimbursement", "security review",
	"vendor assessment", "capacity planning", "quarterly forecast",
	"maintenance schedule", "escalation procedure",
}

var sentenceParts = [][]string{
	{"The", "Each", "Every", "Any", "This"},
	{"customer", "department", "contractor", "request", "account", "shipment", "invoice"},
	{"must be", "should be", "will be", "is", "remains"},
	{"reviewed", "approved", "processed", "archived", "escalated", "validated"},
	{"within 30 days", "by the end of the quarter", "before renewal",
		"under the standard terms", "according to section 4", "without exception"},
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		pages := make([]string, *pagesPer)
		for p := range pages {
			pages[p] = pageText(rng, topic, p+1)
		}

		name := fmt.Sprintf("doc-%04d-%s.pdf", i, strings.ReplaceAll(topic, " ", "-"))
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, buildPDF(pages), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d PDFs (%d pages each) in %s\n", *numFiles, *pagesPer, *outputDir)
}

// pageText produces a paragraph's worth of policy-flavored sentences.
func pageText(rng *rand.Rand, topic string, page int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Section %d covers the %s.\n", page, topic)
	for s := 0; s < 12; s++ {
		words := make([]string, 0, len(sentenceParts))
		for _, choices := range sentenceParts {
			words = append(words, choices[rng.Intn(len(choices))])
		}
		b.WriteString(strings.Join(words, " "))
		b.WriteString(".\n")
	}
	return b.String()
}

// buildPDF assembles a minimal but valid PDF: catalog, page tree, one
// Helvetica font, and one content stream per page.
func buildPDF(pages []string) []byte {
	// Object numbering: 1 catalog, 2 page tree, 3 font, then for each page
	// a page object followed by its content stream.
	pageObj := func(i int) int { return 4 + 2*i }
	contentObj := func(i int) int { return 5 + 2*i }

	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj(i)))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	for i, text := range pages {
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentObj(i)))

		stream := contentStream(text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefStart)

	return buf.Bytes()
}

// contentStream renders text as one Tj per line, walking down the page.
func contentStream(text string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 11 Tf\n72 720 Td\n14 TL\n")
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		b.WriteString("(")
		b.WriteString(escapePDFString(line))
		b.WriteString(") Tj\nT*\n")
	}
	b.WriteString("ET\n")
	return b.String()
}

func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
