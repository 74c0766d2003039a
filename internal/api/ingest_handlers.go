package api

import (
	"net/http"
	"strings"

	"github.com/ignite/rfm-segmentation/internal/ingestion"
	"github.com/ignite/rfm-segmentation/internal/pkg/logger"
)

// Ingest loads customer and order CSVs. With a multipart body, the
// "customers" and "orders" file fields are ingested directly; without
// one, the configured data directory is scanned instead.
//
//	POST /api/ingest
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.ingestUpload(w, r)
		return
	}

	res, err := h.ingest.IngestDir(r.Context(), h.dataDir)
	if err != nil {
		logger.Error("Directory ingestion failed", "dir", h.dataDir, "error", err.Error())
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// 64 MB cap on uploaded CSVs
const maxUploadBytes = 64 << 20

func (h *Handlers) ingestUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	res := &ingestion.Result{}
	handled := false

	if f, _, err := r.FormFile("customers"); err == nil {
		handled = true
		n, err := h.ingest.IngestCustomers(r.Context(), f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "customers: "+err.Error())
			return
		}
		res.Customers = n
	}

	if f, _, err := r.FormFile("orders"); err == nil {
		handled = true
		n, err := h.ingest.IngestOrders(r.Context(), f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, "orders: "+err.Error())
			return
		}
		res.Orders = n
	}

	if !handled {
		respondError(w, http.StatusBadRequest, "no customers or orders file in upload")
		return
	}
	respondJSON(w, http.StatusOK, res)
}
