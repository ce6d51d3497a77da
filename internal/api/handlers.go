package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	vserrors "vodsearch/internal/errors"
	"vodsearch/internal/search"
	"vodsearch/internal/status"
)

// errorBody is the JSON shape of a failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// startIndexRequest is the body of POST /api/collections/{id}/index.
type startIndexRequest struct {
	Title       string `json:"title"`
	Incremental bool   `json:"incremental"`
	Force       bool   `json:"force"`
}

// jobView is the job read model a caller polls.
type jobView struct {
	ID             string `json:"id"`
	CollectionID   string `json:"collection_id"`
	Status         string `json:"status"`
	Title          string `json:"title,omitempty"`
	Total          int    `json:"total"`
	Progress       int    `json:"progress"`
	Skipped        int    `json:"skipped"`
	NewItems       int    `json:"new_item_count"`
	AlreadyIndexed int    `json:"already_indexed"`
	IndexedItems   int    `json:"indexed_item_count"`
	Error          string `json:"error,omitempty"`
}

func viewOf(job *status.Job) jobView {
	return jobView{
		ID:             job.ID,
		CollectionID:   job.CollectionID,
		Status:         job.State,
		Title:          job.Title,
		Total:          job.Total,
		Progress:       job.Progress,
		Skipped:        job.Skipped,
		NewItems:       job.NewItems,
		AlreadyIndexed: job.AlreadyIndexed,
		IndexedItems:   job.IndexedItems,
		Error:          job.Error,
	}
}

// searchResponse is the search payload. Errors ride in the payload so a
// caller always gets the same shape back.
type searchResponse struct {
	Results  []*search.Result      `json:"results"`
	Total    uint64                `json:"total"`
	Channels []search.ChannelFacet `json:"channels"`
	Error    string                `json:"error,omitempty"`
	Code     string                `json:"code,omitempty"`
}

func (s *Server) handleStartIndex(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("id")

	var req startIndexRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, vserrors.New(vserrors.ErrCodeInvalidInput, "invalid request body", err))
			return
		}
	}

	jobID, err := s.orch.Start(r.Context(), collectionID, req.Title, req.Incremental, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := &search.Request{
		CollectionID: r.PathValue("id"),
		Query:        q.Get("q"),
		Fields:       splitMulti(q["search_in"]),
		Channels:     q["channel"],
	}
	if v := q.Get("page"); v != "" {
		req.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("size"); v != "" {
		req.Size, _ = strconv.Atoi(v)
	}

	res, err := s.engine.Search(r.Context(), req)
	if err != nil {
		// Search errors keep the search payload shape.
		writeJSON(w, statusOf(err), searchResponse{
			Results:  []*search.Result{},
			Channels: []search.ChannelFacet{},
			Error:    messageOf(err),
			Code:     vserrors.GetCode(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results:  res.Results,
		Total:    res.Total,
		Channels: res.Channels,
	})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.meta.Channels(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if channels == nil {
		channels = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"channels": channels})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.meta.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := r.PathValue("id")
	ctx := r.Context()

	holder, err := s.status.JobForCollection(ctx, collectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if holder != "" {
		writeError(w, vserrors.New(vserrors.ErrCodeJobConflict,
			"collection has an active indexing job", nil).WithDetail("job_id", holder))
		return
	}

	if err := s.indexes.DeleteIndex(ctx, collectionID); err != nil {
		writeError(w, err)
		return
	}
	if err := s.meta.DeleteCollection(ctx, collectionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// splitMulti flattens repeatable params that may also be comma-joined.
func splitMulti(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Error: errorDetail{
		Code:    vserrors.GetCode(err),
		Message: messageOf(err),
	}})
}

// statusOf maps structured error codes to HTTP status codes.
func statusOf(err error) int {
	switch vserrors.GetCode(err) {
	case vserrors.ErrCodeInvalidInput, vserrors.ErrCodeQueryEmpty, vserrors.ErrCodeNoSearchField:
		return http.StatusBadRequest
	case vserrors.ErrCodeJobNotFound, vserrors.ErrCodeIndexNotFound:
		return http.StatusNotFound
	case vserrors.ErrCodeJobConflict, vserrors.ErrCodeNotCancellable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func messageOf(err error) string {
	var verr *vserrors.Error
	if errors.As(err, &verr) {
		return verr.Message
	}
	return err.Error()
}
