package pipeline

import (
	"context"
	"fmt"

	dserrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/extract"
)

// ParsingStage extracts ordered page text from the raw bytes via the
// extractor collaborator. A document with no extractable text at all is
// fatal; thin text is a warning.
type ParsingStage struct {
	extractor    extract.Extractor
	minTextChars int
}

// NewParsingStage creates the parsing stage.
func NewParsingStage(extractor extract.Extractor, minTextChars int) *ParsingStage {
	return &ParsingStage{extractor: extractor, minTextChars: minTextChars}
}

func (s *ParsingStage) Name() string { return StageParsing }

func (s *ParsingStage) Execute(ctx context.Context, run *Context) *StageResult {
	doc, err := s.extractor.Extract(ctx, run.Data)
	if err != nil {
		return failure(err)
	}

	totalChars := 0
	for _, page := range doc.Pages {
		totalChars += len(page.Text)
	}

	if len(doc.Pages) == 0 || totalChars == 0 {
		return failure(dserrors.New(dserrors.ErrCodeEmptyDocument,
			fmt.Sprintf("no extractable text in %q", run.Filename), nil))
	}
	if totalChars < s.minTextChars {
		run.Warn(fmt.Sprintf("only %d chars of text extracted; results may be poor", totalChars))
	}

	run.Document = doc
	return success(map[string]any{
		"pages":       len(doc.Pages),
		"total_chars": totalChars,
	})
}

// Rollback is a no-op: parsing only populates the run context.
func (s *ParsingStage) Rollback(ctx context.Context, run *Context) error {
	return nil
}
