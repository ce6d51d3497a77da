package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vserrors "vodsearch/internal/errors"
)

func newTestTranscriptClient(t *testing.T, handler http.HandlerFunc) *TimedTextClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTimedTextClient(TimedTextConfig{BaseURL: srv.URL})
}

func TestTimedTextClient_ParsesSegments(t *testing.T) {
	client := newTestTranscriptClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vid1", r.URL.Query().Get("v"))
		assert.Equal(t, "json3", r.URL.Query().Get("fmt"))
		fmt.Fprint(w, `{
			"events": [
				{"tStartMs": 0, "dDurationMs": 2500, "segs": [{"utf8": "the quick"}]},
				{"tStartMs": 2500, "dDurationMs": 3000, "segs": [{"utf8": "brown "}, {"utf8": "fox"}]},
				{"tStartMs": 5500, "dDurationMs": 1000, "segs": [{"utf8": "\n"}]}
			]}`)
	})

	segs, err := client.FetchTranscript(context.Background(), "vid1")
	require.NoError(t, err)
	require.Len(t, segs, 2, "whitespace-only events are dropped")

	assert.Equal(t, "the quick", segs[0].Text)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, 2.5, segs[0].Duration)
	assert.Equal(t, "brown fox", segs[1].Text)
	assert.Equal(t, 2.5, segs[1].Start)
	assert.Equal(t, 3.0, segs[1].Duration)
}

func TestTimedTextClient_ContentAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "no captions track",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "not found", http.StatusNotFound)
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "")
			},
		},
		{
			name: "captions disabled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestTranscriptClient(t, tt.handler)
			segs, err := client.FetchTranscript(context.Background(), "vid1")

			// Content-absent is success-with-empty-transcript.
			require.NoError(t, err)
			assert.Empty(t, segs)
		})
	}
}

func TestTimedTextClient_TransientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{"rate limited", http.StatusTooManyRequests, vserrors.ErrCodeTranscriptBlocked},
		{"server error", http.StatusInternalServerError, vserrors.ErrCodeTranscriptFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestTranscriptClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.name, tt.status)
			})

			_, err := client.FetchTranscript(context.Background(), "vid1")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, vserrors.GetCode(err))
			assert.True(t, vserrors.IsRetryable(err))
		})
	}
}

func TestTimedTextClient_ContextCancellation(t *testing.T) {
	client := newTestTranscriptClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchTranscript(ctx, "vid1")
	assert.ErrorIs(t, err, context.Canceled)
}
