package pipeline

import (
	"bytes"
	"context"
	"fmt"

	dserrors "github.com/docsift/docsift/internal/errors"
)

var pdfMagic = []byte("%PDF-")

// ValidationStage rejects inputs the rest of the pipeline cannot handle:
// wrong file type, oversize files, encrypted PDFs. Low-quality signals (no
// detectable text layer) become warnings, not failures.
type ValidationStage struct {
	maxFileSizeMB int
}

// NewValidationStage creates the validation stage.
func NewValidationStage(maxFileSizeMB int) *ValidationStage {
	return &ValidationStage{maxFileSizeMB: maxFileSizeMB}
}

func (s *ValidationStage) Name() string { return StageValidation }

func (s *ValidationStage) Execute(ctx context.Context, run *Context) *StageResult {
	if len(run.Data) == 0 {
		return failure(dserrors.New(dserrors.ErrCodeEmptyDocument, "document is empty", nil))
	}

	if !bytes.HasPrefix(run.Data, pdfMagic) {
		return failure(dserrors.New(dserrors.ErrCodeUnsupportedType,
			fmt.Sprintf("unsupported file type for %q: missing PDF header", run.Filename), nil))
	}

	maxBytes := s.maxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && len(run.Data) > maxBytes {
		return failure(dserrors.New(dserrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d MB", len(run.Data), s.maxFileSizeMB), nil))
	}

	// Encrypted PDFs carry an /Encrypt entry in the trailer. Extraction
	// would fail with an opaque parse error, so reject up front.
	if bytes.Contains(run.Data, []byte("/Encrypt")) {
		return failure(dserrors.New(dserrors.ErrCodeFileEncrypted,
			fmt.Sprintf("%q is encrypted", run.Filename), nil))
	}

	// A PDF without text-drawing operators is likely a pure scan. Parsing
	// will still run; the warning tells the caller why results may be empty.
	if !bytes.Contains(run.Data, []byte("/Font")) && !bytes.Contains(run.Data, []byte("Tj")) {
		run.Warn("no text layer detected; document may be a scanned image")
	}

	return success(map[string]any{
		"size_bytes": len(run.Data),
		"warnings":   len(run.Warnings),
	})
}

// Rollback is a no-op: validation writes no external state.
func (s *ValidationStage) Rollback(ctx context.Context, run *Context) error {
	return nil
}
