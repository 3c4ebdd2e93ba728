package handler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Remijang/cnl-final-project-sub000/internal/apperr"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/model"
	"github.com/Remijang/cnl-final-project-sub000/internal/store"
)

const minPasswordLen = 8

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, time.Time, error)
}

type AuthHandler struct {
	runner *database.Runner
	tokens TokenIssuer
	logger *slog.Logger
}

func NewAuthHandler(runner *database.Runner, tokens TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{runner: runner, tokens: tokens, logger: logger}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if !usernameRe.MatchString(req.Username) {
		badRequest(w, "username must be 3-32 letters, digits, '.', '_' or '-'")
		return
	}
	if len(req.Password) < minPasswordLen {
		badRequest(w, "password must be at least 8 characters")
		return
	}
	// bcrypt rejects longer inputs.
	if len(req.Password) > 72 {
		badRequest(w, "password must be at most 72 bytes")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var user *model.User
	err = h.runner.InTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
		st := store.New(tx)
		existing, err := st.Users.GetByUsername(ctx, req.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("username %q is taken", req.Username)
		}
		user, err = st.Users.Create(ctx, req.Username, string(hash))
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	h.respondToken(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	var user *model.User
	err := h.runner.Read(r.Context(), func(ctx context.Context, q database.Querier) error {
		var err error
		user, err = store.New(q).Users.GetByUsername(ctx, strings.TrimSpace(req.Username))
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid username or password", Code: "unauthenticated"})
		return
	}

	h.respondToken(w, http.StatusOK, user)
}

func (h *AuthHandler) respondToken(w http.ResponseWriter, status int, user *model.User) {
	tok, exp, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("issue token: %w", err))
		return
	}
	writeJSON(w, status, tokenResponse{Token: tok, ExpiresAt: exp, User: user})
}
