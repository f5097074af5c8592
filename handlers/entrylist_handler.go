package handlers

import (
	"io"
	"net/http"

	"github.com/accstats/accstats/services"
)

type EntrylistHandler struct {
	entrylistService services.EntrylistService
}

func NewEntrylistHandler(entrylistService services.EntrylistService) *EntrylistHandler {
	return &EntrylistHandler{
		entrylistService: entrylistService,
	}
}

// ImportEntrylist accepts a raw entrylist.json as the request body.
func (h *EntrylistHandler) ImportEntrylist(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 10_485_760))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	report, err := h.entrylistService.Import(r.Context(), doc)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportEntrylist builds the filtered entrylist document. minTrust
// defaults to 1 so a minSessions threshold never drops manually
// trusted drivers.
func (h *EntrylistHandler) ExportEntrylist(w http.ResponseWriter, r *http.Request) {
	filter := services.EntrylistExportFilter{
		MinSessions:    queryInt(r, "minSessions", 0),
		MinTrust:       queryInt(r, "minTrust", 1),
		FlagBadDrivers: queryBool(r, "flagBadDrivers"),
	}

	list, err := h.entrylistService.Export(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, list, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PushEntrylist exports with the same filters and uploads the document to
// the object store.
func (h *EntrylistHandler) PushEntrylist(w http.ResponseWriter, r *http.Request) {
	filter := services.EntrylistExportFilter{
		MinSessions:    queryInt(r, "minSessions", 0),
		MinTrust:       queryInt(r, "minTrust", 1),
		FlagBadDrivers: queryBool(r, "flagBadDrivers"),
	}

	key, err := h.entrylistService.Push(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"key": key}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
