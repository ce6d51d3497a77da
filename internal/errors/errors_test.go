package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassification(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		wantCategory  Category
		wantSeverity  Severity
		wantRetryable bool
	}{
		{
			name:          "catalog enumeration is fatal",
			code:          ErrCodeCatalogList,
			wantCategory:  CategoryFetch,
			wantSeverity:  SeverityFatal,
			wantRetryable: false,
		},
		{
			name:          "transcript timeout is retryable",
			code:          ErrCodeTranscriptTimeout,
			wantCategory:  CategoryFetch,
			wantSeverity:  SeverityWarning,
			wantRetryable: true,
		},
		{
			name:          "index write is a store error",
			code:          ErrCodeIndexWrite,
			wantCategory:  CategoryStore,
			wantSeverity:  SeverityError,
			wantRetryable: false,
		},
		{
			name:          "job conflict is a job error",
			code:          ErrCodeJobConflict,
			wantCategory:  CategoryJob,
			wantSeverity:  SeverityError,
			wantRetryable: false,
		},
		{
			name:          "missing search field is validation",
			code:          ErrCodeNoSearchField,
			wantCategory:  CategoryValidation,
			wantSeverity:  SeverityError,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)

			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestError_ErrorString(t *testing.T) {
	err := New(ErrCodeJobNotFound, "job abc not found", nil)
	assert.Equal(t, "[ERR_503_JOB_NOT_FOUND] job abc not found", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeStatusStore, cause)

	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause.Error(), err.Message)
}

func TestError_IsByCode(t *testing.T) {
	a := New(ErrCodeJobConflict, "collection busy", nil)
	b := New(ErrCodeJobConflict, "another message", nil)
	c := New(ErrCodeJobNotFound, "gone", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(TranscriptError("rate limited", nil)))
	assert.False(t, IsRetryable(IndexError("write rejected", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(CatalogError("listing failed", nil)))
	assert.True(t, IsFatal(New(ErrCodeIndexProvision, "cannot create index", nil)))
	assert.False(t, IsFatal(IndexError("single write failed", nil)))
	assert.False(t, IsFatal(nil))
}

func TestWithDetail(t *testing.T) {
	err := IndexError("write rejected", nil).
		WithDetail("collection_id", "PL123").
		WithDetail("item_id", "vid42")

	assert.Equal(t, "PL123", err.Details["collection_id"])
	assert.Equal(t, "vid42", err.Details["item_id"])
}
