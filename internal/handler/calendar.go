package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Remijang/cnl-final-project-sub000/internal/access"
	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
)

// CalendarHandler serves calendars along with their visibility, links,
// grants and subscriptions.
type CalendarHandler struct {
	access *access.Manager
	logger *slog.Logger
}

func NewCalendarHandler(m *access.Manager, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{access: m, logger: logger}
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cal, err := h.access.Calendars.Create(r.Context(), auth.UserID(r.Context()), req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cal)
}

func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	cals, err := h.access.Calendars.ListOwned(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if cals == nil {
		cals = []model.Calendar{}
	}
	writeJSON(w, http.StatusOK, cals)
}

func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	cal, err := h.access.Calendars.Get(r.Context(), ids[0], auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (h *CalendarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	if err := h.access.Calendars.Delete(r.Context(), ids[0], auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Visibility *bool `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Visibility == nil {
		badRequest(w, "visibility is required")
		return
	}
	vs, err := h.access.Subscriptions.SetVisibility(r.Context(), ids[0], auth.UserID(r.Context()), *req.Visibility)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func linkKind(w http.ResponseWriter, r *http.Request) (model.Role, bool) {
	kind, err := model.ParseRole(r.PathValue("kind"))
	if err != nil {
		badRequest(w, "link kind must be read or write")
		return "", false
	}
	return kind, true
}

func (h *CalendarHandler) LinkStatus(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, h.access.Links.Status)
}

func (h *CalendarHandler) EnableLink(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, h.access.Links.Enable)
}

func (h *CalendarHandler) DisableLink(w http.ResponseWriter, r *http.Request) {
	h.link(w, r, h.access.Links.Disable)
}

func (h *CalendarHandler) link(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, calendarID, callerID int64, kind model.Role) (access.LinkStatus, error)) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	kind, ok := linkKind(w, r)
	if !ok {
		return
	}
	ls, err := op(r.Context(), ids[0], auth.UserID(r.Context()), kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

func (h *CalendarHandler) ClaimLink(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	kind, ok := linkKind(w, r)
	if !ok {
		return
	}
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		badRequest(w, "token is required")
		return
	}
	grants, err := h.access.Links.Claim(r.Context(), ids[0], kind, req.Token, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *CalendarHandler) Grants(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.access.Calendars.Grants(r.Context(), ids[0], auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if grants == nil {
		grants = []model.Grant{}
	}
	writeJSON(w, http.StatusOK, grants)
}

func (h *CalendarHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	users, err := h.access.Calendars.Subscribers(r.Context(), ids[0], auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendar_id": ids[0], "user_ids": users})
}

func (h *CalendarHandler) RevokeGrant(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "user_id")
	if !ok {
		return
	}
	role, err := model.ParseRole(r.PathValue("role"))
	if err != nil {
		badRequest(w, "role must be read or write")
		return
	}
	if err := h.access.Subscriptions.RevokeGrant(r.Context(), ids[0], auth.UserID(r.Context()), ids[1], role); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalendarHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.access.Subscriptions.Subscribe(r.Context(), ids[0], auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *CalendarHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	if err := h.access.Subscriptions.Unsubscribe(r.Context(), ids[0], auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendar_id": ids[0], "subscribed": false})
}

func (h *CalendarHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	cals, err := h.access.Subscriptions.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if cals == nil {
		cals = []model.Calendar{}
	}
	writeJSON(w, http.StatusOK, cals)
}
