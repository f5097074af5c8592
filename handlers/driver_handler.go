package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/accstats/accstats/repositories"
	"github.com/accstats/accstats/services"
)

type DriverHandler struct {
	driverService services.DriverService
}

func NewDriverHandler(driverService services.DriverService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
	}
}

func (h *DriverHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	filter := repositories.DriverFilter{
		Search:      r.URL.Query().Get("search"),
		MinSessions: queryInt(r, "minSessions", 0),
		Limit:       queryInt(r, "limit", 0),
		Offset:      queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("trustLevel"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			badRequestResponse(w, r, errInvalidQueryParam("trustLevel", raw))
			return
		}
		filter.TrustLevel = &level
	}

	drivers, err := h.driverService.List(r.Context(), filter)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"drivers": drivers, "count": len(drivers)}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DriverHandler) GetDriver(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")

	profile, err := h.driverService.Get(r.Context(), driverID)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, profile, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DriverHandler) SetTrustLevel(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "driverID")

	var input struct {
		TrustLevel int `json:"trust_level"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.driverService.SetTrustLevel(r.Context(), driverID, input.TrustLevel); err != nil {
		mapServiceError(w, r, err)
		return
	}

	response := jsonResponse{"driver_id": driverID, "trust_level": input.TrustLevel}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ImportBadReports accepts the raw report file as the request body. The
// optional format query parameter forces json or log parsing; by default
// the content is sniffed.
func (h *DriverHandler) ImportBadReports(w http.ResponseWriter, r *http.Request) {
	source := strings.TrimSpace(r.URL.Query().Get("source"))
	if source == "" {
		source = "api upload"
	}
	format := r.URL.Query().Get("format")

	report, err := h.driverService.ImportBadReports(r.Context(), source, http.MaxBytesReader(w, r.Body, 10_485_760), format)
	if err != nil {
		mapServiceError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, report, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
