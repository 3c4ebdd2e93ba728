package handler

import (
	"log/slog"
	"net/http"

	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/poll"
)

type GroupHandler struct {
	groups *poll.Groups
	logger *slog.Logger
}

func NewGroupHandler(groups *poll.Groups, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: groups, logger: logger}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.groups.Create(r.Context(), auth.UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	members, err := h.groups.Members(r.Context(), ids[0])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": ids[0], "user_ids": members})
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}
	if err := h.groups.AddMember(r.Context(), ids[0], auth.UserID(r.Context()), req.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id", "user_id")
	if !ok {
		return
	}
	if err := h.groups.RemoveMember(r.Context(), ids[0], auth.UserID(r.Context()), ids[1]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
