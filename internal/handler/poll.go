package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/poll"
)

type PollHandler struct {
	engine *poll.Engine
	logger *slog.Logger
}

func NewPollHandler(engine *poll.Engine, logger *slog.Logger) *PollHandler {
	return &PollHandler{engine: engine, logger: logger}
}

type pollRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TimeRanges  []struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"time_ranges"`
}

func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ranges := make([]poll.Range, 0, len(req.TimeRanges))
	for _, tr := range req.TimeRanges {
		start, err := time.Parse(time.RFC3339, tr.Start)
		if err != nil {
			badRequest(w, "time range start must be RFC3339 format")
			return
		}
		end, err := time.Parse(time.RFC3339, tr.End)
		if err != nil {
			badRequest(w, "time range end must be RFC3339 format")
			return
		}
		ranges = append(ranges, poll.Range{Start: start, End: end})
	}

	created, err := h.engine.Create(r.Context(), auth.UserID(r.Context()), req.Title, req.Description, ranges)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *PollHandler) List(w http.ResponseWriter, r *http.Request) {
	polls, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

func (h *PollHandler) Status(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	status, err := h.engine.Status(r.Context(), ids[0])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Invite accepts either a user_id or a username.
func (h *PollHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	ownerID := auth.UserID(r.Context())
	var (
		userID  = req.UserID
		created bool
		err     error
	)
	switch {
	case req.UserID > 0:
		created, err = h.engine.InviteUser(r.Context(), ids[0], ownerID, req.UserID)
	case req.Username != "":
		userID, created, err = h.engine.InviteUsername(r.Context(), ids[0], ownerID, req.Username)
	default:
		badRequest(w, "user_id or username is required")
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "invited": created})
}

func (h *PollHandler) InviteGroup(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		GroupID int64 `json:"group_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.GroupID <= 0 {
		badRequest(w, "group_id is required")
		return
	}
	res, err := h.engine.InviteGroup(r.Context(), ids[0], auth.UserID(r.Context()), req.GroupID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PollHandler) Votes(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	votes, err := h.engine.Votes(r.Context(), ids[0], auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

func (h *PollHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	users, err := h.engine.Invitations(r.Context(), ids[0])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poll_id": ids[0], "user_ids": users})
}

func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Votes []poll.VoteInput `json:"votes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Vote(r.Context(), ids[0], auth.UserID(r.Context()), req.Votes); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"poll_id": ids[0], "recorded": len(req.Votes)})
}

func (h *PollHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		TimeRangeID int64 `json:"time_range_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TimeRangeID <= 0 {
		badRequest(w, "time_range_id is required")
		return
	}
	p, err := h.engine.Confirm(r.Context(), ids[0], auth.UserID(r.Context()), req.TimeRangeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PollHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ids, ok := pathIDs(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.Cancel(r.Context(), ids[0], auth.UserID(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": ids[0], "is_cancelled": true})
}
