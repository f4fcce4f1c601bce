package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/me/gosweep/internal/aggregate"
	"github.com/me/gosweep/internal/cache"
	"github.com/me/gosweep/internal/derive"
	"github.com/me/gosweep/internal/export"
	"github.com/me/gosweep/internal/filter"
	"github.com/me/gosweep/internal/validate"
	"github.com/me/gosweep/pkg/model"
)

// pipelineRequest selects one result of a sweep and describes the
// processing to apply to it. Derived series are added first so the
// variable filter can select them; filters then run in variables,
// time-range, downsample order.
type pipelineRequest struct {
	Run int `json:"run"`

	Derive []struct {
		Name string `json:"name"`
		Expr string `json:"expr"`
	} `json:"derive"`

	Variables []string `json:"variables"`
	TimeRange *struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"time_range"`
	Downsample int `json:"downsample"`

	Statistics    bool `json:"statistics"`
	MovingAverage int  `json:"moving_average"`
	CumulativeSum bool `json:"cumulative_sum"`
	Correlations  bool `json:"correlations"`
}

type pipelineResponse struct {
	Result        *model.SimulationResults `json:"result"`
	Statistics    *aggregate.Statistics    `json:"statistics,omitempty"`
	Correlations  *aggregate.Correlations  `json:"correlations,omitempty"`
	MovingAverage *model.SimulationResults `json:"moving_average,omitempty"`
	CumulativeSum *model.SimulationResults `json:"cumulative_sum,omitempty"`
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req pipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	result, apiErr := s.selectResult(r, id, req.Run)
	if apiErr != nil {
		status := http.StatusInternalServerError
		if apiErr.Code == model.ErrNotFound {
			status = http.StatusNotFound
		}
		respondError(w, reqID, status, apiErr)
		return
	}

	for _, d := range req.Derive {
		result = derive.Series(result, d.Name, d.Expr)
	}
	if len(req.Variables) > 0 {
		result = filter.Variables(result, req.Variables)
	}
	if req.TimeRange != nil {
		result = filter.TimeRange(result, req.TimeRange.Start, req.TimeRange.End)
	}
	if req.Downsample > 1 {
		result = filter.Downsample(result, req.Downsample)
	}
	if !result.Success {
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{
			Code:    model.ErrValidation,
			Message: result.Error,
		})
		return
	}

	resp := pipelineResponse{Result: result}
	if req.Statistics {
		stats, failed := aggregate.ComputeStatistics(result)
		if failed != nil {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: failed.Error})
			return
		}
		resp.Statistics = stats
	}
	if req.Correlations {
		corr, failed := aggregate.ComputeCorrelations(result)
		if failed != nil {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: failed.Error})
			return
		}
		resp.Correlations = corr
	}
	if req.MovingAverage > 0 {
		smoothed := aggregate.MovingAverage(result, req.MovingAverage)
		if !smoothed.Success {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: smoothed.Error})
			return
		}
		resp.MovingAverage = smoothed
	}
	if req.CumulativeSum {
		summed := aggregate.CumulativeSum(result)
		if !summed.Success {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: summed.Error})
			return
		}
		resp.CumulativeSum = summed
	}

	respondOK(w, reqID, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	runIdx, _ := strconv.Atoi(r.URL.Query().Get("run"))
	result, apiErr := s.selectResult(r, id, runIdx)
	if apiErr != nil {
		status := http.StatusInternalServerError
		if apiErr.Code == model.ErrNotFound {
			status = http.StatusNotFound
		}
		respondError(w, reqID, status, apiErr)
		return
	}

	opts := export.CSVOptions{}
	if d := r.URL.Query().Get("delimiter"); d != "" {
		delim, _ := utf8.DecodeRuneInString(d)
		opts.Delimiter = delim
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		if rows, _ := strconv.Atoi(r.URL.Query().Get("chunk_rows")); rows > 0 {
			s.streamCSV(w, reqID, result, opts, rows)
			return
		}
		out, err := export.ToCSV(result, opts)
		if err != nil {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: err.Error()})
			return
		}
		respondRaw(w, "text/csv", []byte(out))

	case "json":
		out, err := export.ToJSON(result, r.URL.Query().Get("pretty") == "true")
		if err != nil {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: err.Error()})
			return
		}
		respondRaw(w, "application/json", out)

	case "html":
		maxRows, _ := strconv.Atoi(r.URL.Query().Get("max_rows"))
		out, err := export.ToHTML(result, maxRows)
		if err != nil {
			respondError(w, reqID, http.StatusUnprocessableEntity,
				&model.APIError{Code: model.ErrValidation, Message: err.Error()})
			return
		}
		respondRaw(w, "text/html", []byte(out))

	default:
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("unknown export format "+format,
				model.FieldError{Field: "format", Message: "one of csv, json, html"}))
	}
}

// streamCSV writes the result as CSV in chunks, flushing between
// chunks so large exports do not buffer whole in memory.
func (s *Server) streamCSV(w http.ResponseWriter, reqID string, result *model.SimulationResults, opts export.CSVOptions, rowsPerChunk int) {
	chunker, err := export.NewCSVChunker(result, opts, rowsPerChunk)
	if err != nil {
		respondError(w, reqID, http.StatusUnprocessableEntity,
			&model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for {
		chunk, ok, err := chunker.Next()
		if err != nil {
			s.logger.Error("csv chunk", "error", err)
			return
		}
		if !ok {
			return
		}
		io.WriteString(w, chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// selectResult fetches one result of a sweep by completion index.
func (s *Server) selectResult(r *http.Request, sweepID string, idx int) (*model.SimulationResults, *model.APIError) {
	results, apiErr := s.lookupResults(r.Context(), sweepID)
	if apiErr != nil {
		return nil, apiErr
	}
	if idx < 0 || idx >= len(results) {
		return nil, &model.APIError{
			Code:    model.ErrNotFound,
			Message: fmt.Sprintf("sweep %s has %d results, requested index %d", sweepID, len(results), idx),
		}
	}
	return results[idx], nil
}

// handleValidateResult coerces an arbitrary result payload and reports
// schema errors and warnings without persisting anything.
func (s *Server) handleValidateResult(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			&model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}

	result, err := validate.ParsePayload(body)
	if err != nil {
		respondError(w, reqID, http.StatusUnprocessableEntity,
			&model.APIError{Code: model.ErrValidation, Message: err.Error()})
		return
	}

	opts := &validate.Options{}
	if v := r.URL.Query().Get("required_variables"); v != "" {
		opts.RequiredVariables = strings.Split(v, ",")
	}
	opts.MinSamples, _ = strconv.Atoi(r.URL.Query().Get("min_samples"))
	opts.MaxSamples, _ = strconv.Atoi(r.URL.Query().Get("max_samples"))
	report := validate.Schema(result, opts)

	respondOK(w, reqID, map[string]any{
		"result": result,
		"report": report,
	})
}

// handleLookupResult checks the in-memory result cache for a previous
// run of the same model with the same parameters.
func (s *Server) handleLookupResult(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Model      string         `json:"model"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if req.Model == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "model", Message: "model is required"}))
		return
	}

	key := cache.DeriveKey(req.Model, req.Parameters)
	record, ok := s.cache.Get(key)
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("cached result", key))
		return
	}
	respondOK(w, reqID, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	q := model.HistoryFilter{
		ModelPath: r.URL.Query().Get("model"),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid since timestamp: "+err.Error()))
			return
		}
		q.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid until timestamp: "+err.Error()))
			return
		}
		q.Until = t
	}
	if v := r.URL.Query().Get("tags"); v != "" {
		q.Tags = strings.Split(v, ",")
	}

	entries, err := s.store.QueryHistory(r.Context(), q)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, entries)
}
