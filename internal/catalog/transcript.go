package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	vserrors "vodsearch/internal/errors"
)

// TimedTextClient fetches transcripts from the timedtext endpoint in the
// json3 format: a list of caption events with millisecond offsets.
type TimedTextClient struct {
	client  *http.Client
	baseURL string
	lang    string
}

// TimedTextConfig configures a TimedTextClient.
type TimedTextConfig struct {
	// BaseURL of the timedtext endpoint (default https://video.google.com/timedtext).
	BaseURL string
	// Lang is the caption language to request (default "en").
	Lang string
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
}

// NewTimedTextClient creates a transcript fetcher.
func NewTimedTextClient(cfg TimedTextConfig) *TimedTextClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://video.google.com/timedtext"
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &TimedTextClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		lang:    cfg.Lang,
	}
}

var _ TranscriptFetcher = (*TimedTextClient)(nil)

// timedTextResponse is the json3 caption payload.
type timedTextResponse struct {
	Events []struct {
		StartMs    int64 `json:"tStartMs"`
		DurationMs int64 `json:"dDurationMs"`
		Segs       []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// FetchTranscript implements TranscriptFetcher.
//
// A 404, an empty body, or a payload without caption events all mean the
// item has no transcript: that is content-absent, not a failure. Rate
// limiting and server errors are transient and surface as retryable errors.
func (t *TimedTextClient) FetchTranscript(ctx context.Context, itemID string) ([]Segment, error) {
	q := url.Values{}
	q.Set("v", itemID)
	q.Set("lang", t.lang)
	q.Set("fmt", "json3")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeTranscriptFetch, "failed to build transcript request", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, vserrors.New(vserrors.ErrCodeTranscriptTimeout, "transcript request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return []Segment{}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, vserrors.New(vserrors.ErrCodeTranscriptBlocked, "transcript endpoint rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, vserrors.New(vserrors.ErrCodeTranscriptFetch,
			fmt.Sprintf("transcript endpoint returned status %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		// Forbidden and friends: captions disabled for this item.
		return []Segment{}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeTranscriptFetch, "failed to read transcript body", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return []Segment{}, nil
	}

	var payload timedTextResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeTranscriptFetch, "failed to decode transcript payload", err)
	}

	segments := make([]Segment, 0, len(payload.Events))
	for _, ev := range payload.Events {
		var b strings.Builder
		for _, s := range ev.Segs {
			b.WriteString(s.UTF8)
		}
		text := strings.TrimSpace(strings.ReplaceAll(b.String(), "\n", " "))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Text:     text,
			Start:    float64(ev.StartMs) / 1000.0,
			Duration: float64(ev.DurationMs) / 1000.0,
		})
	}

	return segments, nil
}
