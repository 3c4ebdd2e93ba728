package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
)

func TestWriteErrorStatusAndCode(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{apperr.NotFound("calendar %d", 7), http.StatusNotFound, "not_found"},
		{apperr.PermissionDenied("owner only"), http.StatusForbidden, "permission_denied"},
		{apperr.InvalidLink("token does not belong to calendar"), http.StatusBadRequest, "invalid_link"},
		{apperr.Validation("title is required"), http.StatusBadRequest, "validation_error"},
		{apperr.Conflict("already subscribed"), http.StatusConflict, "conflict"},
		{apperr.Unavailable(errors.New("database is locked")), http.StatusServiceUnavailable, "unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, logger, fmt.Errorf("wrapped: %w", tt.err))

		if rec.Code != tt.wantStatus {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.wantStatus)
		}
		var body errorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Code != tt.wantCode {
			t.Errorf("%v: code = %q, want %q", tt.err, body.Code, tt.wantCode)
		}
	}
}

func TestWriteErrorHidesInfrastructureDetails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	writeError(rec, logger, apperr.Unavailable(errors.New("disk I/O error at /var/lib/calshare.db")))

	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	if strings.Contains(rec.Body.String(), "/var/lib") {
		t.Errorf("body leaks details: %s", rec.Body.String())
	}
}

func TestPathIDs(t *testing.T) {
	mux := http.NewServeMux()
	var got []int64
	mux.HandleFunc("GET /c/{id}/e/{event_id}", func(w http.ResponseWriter, r *http.Request) {
		ids, ok := pathIDs(w, r, "id", "event_id")
		if ok {
			got = ids
			w.WriteHeader(http.StatusNoContent)
		}
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/c/3/e/9", nil))
	if rec.Code != http.StatusNoContent || len(got) != 2 || got[0] != 3 || got[1] != 9 {
		t.Errorf("status = %d, ids = %v", rec.Code, got)
	}

	for _, path := range []string{"/c/abc/e/9", "/c/3/e/0", "/c/-1/e/2"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	var v struct{}
	if decodeJSON(rec, req, &v) {
		t.Fatal("decodeJSON accepted invalid body")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
