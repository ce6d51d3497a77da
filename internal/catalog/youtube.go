package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	vserrors "vodsearch/internal/errors"
)

// YouTubeLister enumerates playlist items via the YouTube Data API v3.
// It pages through playlistItems and batch-fetches statistics and
// descriptions from the videos endpoint, 50 ids per call.
type YouTubeLister struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	pageSize int
}

// YouTubeListerConfig configures a YouTubeLister.
type YouTubeListerConfig struct {
	// BaseURL of the Data API (default https://www.googleapis.com/youtube/v3).
	BaseURL string
	// APIKey authenticates requests.
	APIKey string
	// PageSize per request, capped at 50 by the API.
	PageSize int
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
}

// NewYouTubeLister creates a lister for the YouTube Data API.
func NewYouTubeLister(cfg YouTubeListerConfig) *YouTubeLister {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 50 {
		cfg.PageSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &YouTubeLister{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
	}
}

var _ Lister = (*YouTubeLister)(nil)

// playlistItemsResponse is the subset of the playlistItems payload we read.
type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Thumbnails  struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// videosResponse is the subset of the videos payload we read.
type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// ListItems implements Lister.
//
// A 404 from the playlistItems endpoint (deleted or private collection)
// returns an empty slice. Other failures are enumeration errors, fatal to
// the calling job.
func (y *YouTubeLister) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	type pageEntry struct {
		videoID     string
		title       string
		publishedAt string
		thumbnail   string
	}

	var entries []pageEntry
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("part", "snippet,contentDetails")
		q.Set("playlistId", collectionID)
		q.Set("maxResults", strconv.Itoa(y.pageSize))
		q.Set("key", y.apiKey)
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page playlistItemsResponse
		status, err := y.getJSON(ctx, "/playlistItems", q, &page)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return []Item{}, nil
		}

		for _, it := range page.Items {
			entries = append(entries, pageEntry{
				videoID:     it.ContentDetails.VideoID,
				title:       it.Snippet.Title,
				publishedAt: it.Snippet.PublishedAt,
				thumbnail:   it.Snippet.Thumbnails.Default.URL,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(entries) == 0 {
		return []Item{}, nil
	}

	// Batch-fetch statistics and descriptions, 50 ids per request.
	type videoDetail struct {
		description string
		channel     string
		viewCount   uint64
	}
	details := make(map[string]videoDetail, len(entries))
	for start := 0; start < len(entries); start += 50 {
		end := start + 50
		if end > len(entries) {
			end = len(entries)
		}
		ids := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			ids = append(ids, e.videoID)
		}

		q := url.Values{}
		q.Set("part", "snippet,statistics")
		q.Set("id", strings.Join(ids, ","))
		q.Set("key", y.apiKey)

		var page videosResponse
		if _, err := y.getJSON(ctx, "/videos", q, &page); err != nil {
			return nil, err
		}
		for _, v := range page.Items {
			views, _ := strconv.ParseUint(v.Statistics.ViewCount, 10, 64)
			details[v.ID] = videoDetail{
				description: v.Snippet.Description,
				channel:     v.Snippet.ChannelTitle,
				viewCount:   views,
			}
		}
	}

	// Items without detail entries are private or deleted; skip them the
	// way the upstream API omits them from the videos endpoint.
	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		d, ok := details[e.videoID]
		if !ok {
			continue
		}
		publishedAt, _ := time.Parse(time.RFC3339, e.publishedAt)
		items = append(items, Item{
			ID:          e.videoID,
			Title:       e.title,
			Description: d.description,
			Channel:     d.channel,
			PublishedAt: publishedAt,
			ViewCount:   d.viewCount,
			Thumbnail:   e.thumbnail,
		})
	}

	return items, nil
}

// getJSON performs one GET and decodes the JSON body into out.
// Returns the HTTP status so callers can special-case 404.
func (y *YouTubeLister) getJSON(ctx context.Context, path string, q url.Values, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return 0, vserrors.CatalogError("failed to build catalog request", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return 0, vserrors.CatalogError("catalog request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, vserrors.CatalogError(
			fmt.Sprintf("catalog returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, vserrors.CatalogError("failed to decode catalog response", err)
	}
	return resp.StatusCode, nil
}
