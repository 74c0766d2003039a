package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
	"github.com/ignite/rfm-segmentation/internal/rfm"
)

// RunRequest is the body of POST /api/pipeline/run. All fields are
// optional; calc_date defaults to today (UTC) and the rest to the
// configured defaults.
type RunRequest struct {
	CalcDate   string `json:"calc_date"`
	WindowDays int    `json:"window_days"`
	K          int    `json:"k"`
}

// RunPipeline executes one segmentation run synchronously. Concurrent
// runs for the same calc_date are rejected with 409; runs for different
// calc_dates proceed independently.
//
//	POST /api/pipeline/run
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	calcDate := time.Now().UTC().Truncate(24 * time.Hour)
	if req.CalcDate != "" {
		parsed, err := time.Parse("2006-01-02", req.CalcDate)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "calc_date must be YYYY-MM-DD")
			return
		}
		calcDate = parsed
	}

	params := rfm.Params{
		CalcDate:   calcDate,
		WindowDays: req.WindowDays,
		K:          req.K,
	}
	if params.WindowDays == 0 {
		params.WindowDays = h.defaults.WindowDays
	}
	if params.K == 0 {
		params.K = h.defaults.K
	}

	lock := h.locks(calcDate)
	acquired, err := lock.Acquire(r.Context())
	if err != nil {
		logger.Error("Run lock acquire failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "lock acquire failed")
		return
	}
	if !acquired {
		respondError(w, http.StatusConflict, "a run for this calc_date is already in progress")
		return
	}
	defer lock.Release(r.Context())

	result, err := h.runner.Run(r.Context(), params)
	if err != nil {
		var rfmErr *rfm.Error
		if errors.As(err, &rfmErr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": rfmErr.Message,
				"kind":  string(rfmErr.Kind),
			})
			return
		}
		logger.Error("Pipeline run failed",
			"calc_date", calcDate.Format("2006-01-02"),
			"error", err.Error())
		respondError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	respondJSON(w, http.StatusOK, result.Summary)
}
