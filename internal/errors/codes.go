// Package errors provides structured error handling for vodsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index and store errors
//   - 3XX: Catalog and transcript fetch errors
//   - 4XX: Validation errors
//   - 5XX: Job and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates index and metadata store errors.
	CategoryStore Category = "STORE"
	// CategoryFetch indicates catalog and transcript fetch errors.
	CategoryFetch Category = "FETCH"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryJob indicates job lifecycle errors.
	CategoryJob Category = "JOB"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the job.
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

	// Index/store errors (200-299)
	ErrCodeIndexProvision = "ERR_201_INDEX_PROVISION"
	ErrCodeIndexWrite     = "ERR_202_INDEX_WRITE"
	ErrCodeIndexNotFound  = "ERR_203_INDEX_NOT_FOUND"
	ErrCodeCorruptIndex   = "ERR_204_CORRUPT_INDEX"
	ErrCodeMetadataStore  = "ERR_205_METADATA_STORE"
	ErrCodeStatusStore    = "ERR_206_STATUS_STORE"

	// Catalog/transcript errors (300-399)
	ErrCodeCatalogList       = "ERR_301_CATALOG_LIST"
	ErrCodeTranscriptTimeout = "ERR_302_TRANSCRIPT_TIMEOUT"
	ErrCodeTranscriptBlocked = "ERR_303_TRANSCRIPT_BLOCKED"
	ErrCodeTranscriptFetch   = "ERR_304_TRANSCRIPT_FETCH"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty    = "ERR_402_QUERY_EMPTY"
	ErrCodeNoSearchField = "ERR_403_NO_SEARCH_FIELD"

	// Job/internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeJobConflict    = "ERR_502_JOB_CONFLICT"
	ErrCodeJobNotFound    = "ERR_503_JOB_NOT_FOUND"
	ErrCodeNotCancellable = "ERR_504_NOT_CANCELLABLE"
	ErrCodeNothingIndexed = "ERR_505_NOTHING_INDEXED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryJob
	}

	// Numeric portion, e.g. "201" from "ERR_201_INDEX_PROVISION".
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryFetch
	case '4':
		return CategoryValidation
	default:
		return CategoryJob
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeIndexProvision, ErrCodeCatalogList:
		// Fatal to the whole job, no partial credit.
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Transient transcript-fetch conditions are retried at the worker level.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeTranscriptTimeout, ErrCodeTranscriptBlocked, ErrCodeTranscriptFetch:
		return true
	default:
		return false
	}
}
