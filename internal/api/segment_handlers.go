package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/rfm-segmentation/internal/domain"
	"github.com/ignite/rfm-segmentation/internal/export"
	"github.com/ignite/rfm-segmentation/internal/repository/postgres"
)

// GetSegments returns per-segment aggregates for one run.
//
//	GET /api/segments?calc_date=YYYY-MM-DD
func (h *Handlers) GetSegments(w http.ResponseWriter, r *http.Request) {
	day, ok := h.resolveCalcDate(w, r)
	if !ok {
		return
	}

	stats, err := h.segments.SegmentStats(r.Context(), day)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load segments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"calc_date": day.UTC().Format("2006-01-02"),
		"segments":  stats,
	})
}

// GetSegmentCustomers lists the members of one segment, paginated.
//
//	GET /api/segments/{segment}/customers?calc_date=...&page=...&limit=...
func (h *Handlers) GetSegmentCustomers(w http.ResponseWriter, r *http.Request) {
	segment, ok := parseSegment(chi.URLParam(r, "segment"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown segment")
		return
	}

	day, ok := h.resolveCalcDate(w, r)
	if !ok {
		return
	}

	p := ParsePagination(r, 50, 500)
	customers, total, err := h.segments.SegmentCustomers(r.Context(), day, segment, p.Limit, p.Offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load segment customers")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(customers, p, int64(total)))
}

// GetCustomer returns one customer with their segment history, newest run
// first.
//
//	GET /api/customers/{customerID}
func (h *Handlers) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	customer, err := h.segments.Customer(r.Context(), customerID)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load customer")
		return
	}

	history, err := h.segments.CustomerHistory(r.Context(), customerID)
	if err != nil && !errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "failed to load customer history")
		return
	}

	resp := map[string]interface{}{
		"customer": customer,
		"history":  history,
	}
	if len(history) > 0 {
		resp["current_segment"] = history[0].SegmentName
	}
	respondJSON(w, http.StatusOK, resp)
}

// parseSegment resolves a URL path segment name, accepting both the
// display form ("Loyal Customers") and the slug form ("loyal-customers").
func parseSegment(raw string) (domain.Segment, bool) {
	for _, s := range domain.Segments() {
		if raw == string(s) || raw == export.SegmentSlug(s) {
			return s, true
		}
	}
	return "", false
}
