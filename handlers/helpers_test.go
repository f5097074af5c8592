package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/accstats/accstats/services"
)

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name   string `json:"name"`
		Season int    `json:"season"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name": "GT3 Cup", "season": 2025}`, ""},
		{"empty body", ``, "body must not be empty"},
		{"malformed", `{"name": `, "badly-formed JSON"},
		{"unknown field", `{"name": "GT3 Cup", "rounds": 5}`, "unknown key"},
		{"wrong type", `{"name": "GT3 Cup", "season": "two"}`, "incorrect JSON type for field"},
		{"trailing value", `{"name": "GT3 Cup"} {"name": "again"}`, "single JSON value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/championships", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst payload
			err := readJSON(rec, req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("readJSON: %v", err)
				}
				if dst.Name != "GT3 Cup" || dst.Season != 2025 {
					t.Errorf("decoded = %+v", dst)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	headers := http.Header{"X-Request-Id": []string{"abc"}}

	if err := writeJSON(rec, http.StatusCreated, jsonResponse{"status": "ok"}, headers); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get("X-Request-Id") != "abc" {
		t.Error("extra header dropped")
	}
	var decoded map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestGetIDFromURL(t *testing.T) {
	request := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/competitions/"+value, nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("competitionID", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}

	if id, err := getIDFromURL(request("42"), "competitionID"); err != nil || id != 42 {
		t.Errorf("id = %d, err = %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := getIDFromURL(request(bad), "competitionID"); err == nil {
			t.Errorf("value %q: expected error", bad)
		}
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/drivers?limit=25&bad=xyz&flag=true&alt=1&off=no", nil)

	if got := queryInt(req, "limit", 10); got != 25 {
		t.Errorf("limit = %d, want 25", got)
	}
	if got := queryInt(req, "missing", 10); got != 10 {
		t.Errorf("missing int = %d, want default", got)
	}
	if got := queryInt(req, "bad", 10); got != 10 {
		t.Errorf("malformed int = %d, want default", got)
	}
	if !queryBool(req, "flag") || !queryBool(req, "alt") {
		t.Error("true variants not recognized")
	}
	if queryBool(req, "off") || queryBool(req, "missing") {
		t.Error("false variants misread as true")
	}
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"driver not found", services.ErrDriverNotFound, http.StatusNotFound},
		{"competition not found", services.ErrCompetitionNotFound, http.StatusNotFound},
		{"name conflict", services.ErrPointsSystemNameConflict, http.StatusConflict},
		{"already grouped", services.ErrClusterAlreadyGrouped, http.StatusConflict},
		{"validation", services.ErrValidationFailed, http.StatusBadRequest},
		{"store not configured", services.ErrStoreNotConfigured, http.StatusBadRequest},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()

			mapServiceError(rec, req, tt.err)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if _, ok := body["error"]; !ok {
				t.Error("error envelope missing error key")
			}
		})
	}
}
