package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/accstats/accstats/services"
)

type IngestHandler struct {
	ingestService services.IngestService
	inboxDir      string
}

func NewIngestHandler(ingestService services.IngestService, inboxDir string) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		inboxDir:      inboxDir,
	}
}

// Scan ingests every result export currently sitting in the inbox
// directory.
func (h *IngestHandler) Scan(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingestService.IngestBatch(r.Context(), h.inboxDir)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// IngestFile ingests a single named export from the inbox directory. The
// filename must be a bare name; path separators are rejected.
func (h *IngestHandler) IngestFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		badRequestResponse(w, r, errors.New("missing filename in URL path"))
		return
	}
	if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		badRequestResponse(w, r, errors.New("filename must not contain path separators"))
		return
	}

	outcome, err := h.ingestService.IngestFile(r.Context(), filepath.Join(h.inboxDir, filename))
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, outcome, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
