// Package errors provides structured error handling for docsift.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Validation errors (bad input documents)
//   - 3XX: Provider errors (embedding, network)
//   - 4XX: Index errors (vector, lexical)
//   - 5XX: Storage errors
//   - 6XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryValidation indicates input document validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryProvider indicates embedding provider and network errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryIndex indicates vector/lexical index errors.
	CategoryIndex Category = "INDEX"
	// CategoryStorage indicates object storage errors.
	CategoryStorage Category = "STORAGE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Validation errors (200-299)
	ErrCodeUnsupportedType = "ERR_201_UNSUPPORTED_TYPE"
	ErrCodeFileTooLarge    = "ERR_202_FILE_TOO_LARGE"
	ErrCodeFileCorrupt     = "ERR_203_FILE_CORRUPT"
	ErrCodeFileEncrypted   = "ERR_204_FILE_ENCRYPTED"
	ErrCodeEmptyDocument   = "ERR_205_EMPTY_DOCUMENT"
	ErrCodeDuplicate       = "ERR_206_DUPLICATE_DOCUMENT"
	ErrCodeInvalidInput    = "ERR_207_INVALID_INPUT"

	// Provider errors (300-399)
	ErrCodeProviderTimeout     = "ERR_301_PROVIDER_TIMEOUT"
	ErrCodeProviderRateLimit   = "ERR_302_PROVIDER_RATE_LIMIT"
	ErrCodeProviderUnavailable = "ERR_303_PROVIDER_UNAVAILABLE"
	ErrCodeProviderAuth        = "ERR_304_PROVIDER_AUTH"
	ErrCodeProviderQuota       = "ERR_305_PROVIDER_QUOTA"
	ErrCodeEmbeddingFailed     = "ERR_306_EMBEDDING_FAILED"

	// Index errors (400-499)
	ErrCodeIndexInsert       = "ERR_401_INDEX_INSERT"
	ErrCodeIndexSearch       = "ERR_402_INDEX_SEARCH"
	ErrCodeIndexDelete       = "ERR_403_INDEX_DELETE"
	ErrCodeDimensionMismatch = "ERR_404_DIMENSION_MISMATCH"

	// Storage errors (500-599)
	ErrCodeStorageWrite  = "ERR_501_STORAGE_WRITE"
	ErrCodeStorageRead   = "ERR_502_STORAGE_READ"
	ErrCodeStorageDelete = "ERR_503_STORAGE_DELETE"

	// Internal errors (600-699)
	ErrCodeInternal        = "ERR_601_INTERNAL"
	ErrCodeChunkingFailed  = "ERR_602_CHUNKING_FAILED"
	ErrCodeExtractFailed   = "ERR_603_EXTRACT_FAILED"
	ErrCodeRollbackPartial = "ERR_604_ROLLBACK_PARTIAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryValidation
	case '3':
		return CategoryProvider
	case '4':
		return CategoryIndex
	case '5':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Validation failures abort the run; everything else defaults to ERROR.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeFileCorrupt, ErrCodeFileEncrypted, ErrCodeUnsupportedType, ErrCodeProviderAuth:
		return SeverityFatal
	case ErrCodeRollbackPartial:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// retryableCodes lists error codes whose operations may be retried.
var retryableCodes = map[string]bool{
	ErrCodeProviderTimeout:     true,
	ErrCodeProviderRateLimit:   true,
	ErrCodeProviderUnavailable: true,
	ErrCodeIndexInsert:         true,
	ErrCodeIndexSearch:         true,
	ErrCodeStorageWrite:        true,
}

// isRetryableCode reports whether the code represents a transient failure.
func isRetryableCode(code string) bool {
	return retryableCodes[code]
}
