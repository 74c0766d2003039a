package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/rfm-segmentation/internal/export"
	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
)

// ExportSegment streams one segment's membership as CSV. With
// ?upload=s3 the file goes to the configured bucket instead and the
// response carries the object key.
//
//	GET /api/export/segments/{segment}?calc_date=...&upload=s3
func (h *Handlers) ExportSegment(w http.ResponseWriter, r *http.Request) {
	segment, ok := parseSegment(chi.URLParam(r, "segment"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown segment")
		return
	}

	day, ok := h.resolveCalcDate(w, r)
	if !ok {
		return
	}

	assignments, err := h.segments.SegmentAssignments(r.Context(), day, segment)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load segment")
		return
	}

	if r.URL.Query().Get("upload") == "s3" {
		if h.uploader == nil {
			respondError(w, http.StatusNotImplemented, "S3 export is not configured")
			return
		}
		key, err := h.uploader.UploadSegment(r.Context(), day, segment, assignments)
		if err != nil {
			logger.Error("Segment export upload failed",
				"segment", string(segment),
				"error", err.Error())
			respondError(w, http.StatusBadGateway, "upload failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"key":  key,
			"rows": len(assignments),
		})
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", export.SegmentSlug(segment), day.UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteSegmentCSV(w, assignments); err != nil {
		logger.Error("Segment export write failed", "segment", string(segment), "error", err.Error())
	}
}
