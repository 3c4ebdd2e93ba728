package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/access"
	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

type CalendarEventHandler struct {
	events *access.Events
	logger *slog.Logger
}

func NewCalendarEventHandler(events *access.Events, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{events: events, logger: logger}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		badRequest(w, "start_time must be RFC3339 format")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		badRequest(w, "end_time must be RFC3339 format")
		return
	}

	ev, err := h.events.Create(r.Context(), ids[0], auth.UserID(r.Context()), access.EventInput{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		badRequest(w, "start and end query parameters are required")
		return
	}
	start, err := parseFlexibleTime(startStr)
	if err != nil {
		badRequest(w, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		badRequest(w, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	events, err := h.events.List(r.Context(), ids[0], auth.UserID(r.Context()), start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "event_id")
	if !ok {
		return
	}
	if err := h.events.Delete(r.Context(), ids[0], ids[1], auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
