package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/Remijang/cnl-final-project-sub000/internal/access"
	"github.com/Remijang/cnl-final-project-sub000/internal/auth"
	"github.com/Remijang/cnl-final-project-sub000/internal/database"
	"github.com/Remijang/cnl-final-project-sub000/internal/handler"
	"github.com/Remijang/cnl-final-project-sub000/internal/middleware"
	"github.com/Remijang/cnl-final-project-sub000/internal/poll"
	ws "github.com/Remijang/cnl-final-project-sub000/internal/websocket"
)

type Options struct {
	StoreTimeout time.Duration
	WSOrigins    []string
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.Tokens
	authH       *handler.AuthHandler
	calendarH   *handler.CalendarHandler
	eventH      *handler.CalendarEventHandler
	groupH      *handler.GroupHandler
	pollH       *handler.PollHandler
	rateLimiter *middleware.RateLimiter
	wsOrigins   []string
	logger      *slog.Logger
}

func New(db *sql.DB, tokens *auth.Tokens, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	runner := database.NewRunner(db, opts.StoreTimeout)

	mgr := access.New(runner, logger)
	engine := poll.NewEngine(runner, hub, logger.With("component", "poll"))

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      tokens,
		authH:       handler.NewAuthHandler(runner, tokens, logger.With("component", "auth")),
		calendarH:   handler.NewCalendarHandler(mgr, logger.With("component", "calendar")),
		eventH:      handler.NewCalendarEventHandler(mgr.Events, logger.With("component", "event")),
		groupH:      handler.NewGroupHandler(poll.NewGroups(runner), logger.With("component", "group")),
		pollH:       handler.NewPollHandler(engine, logger.With("component", "poll_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		wsOrigins:   opts.WSOrigins,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimited(middleware.RegisterPolicy, s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(middleware.LoginPolicy, s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	logged := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.RequestID(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}` + "\n"))
}

func (s *Server) rateLimited(p middleware.Policy, h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter, p)(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Calendars
	mux.HandleFunc("POST /api/calendars", s.calendarH.Create)
	mux.HandleFunc("GET /api/calendars", s.calendarH.List)
	mux.HandleFunc("GET /api/calendars/{id}", s.calendarH.Get)
	mux.HandleFunc("DELETE /api/calendars/{id}", s.calendarH.Delete)
	mux.HandleFunc("PUT /api/calendars/{id}/visibility", s.calendarH.SetVisibility)

	// Capability links
	mux.HandleFunc("GET /api/calendars/{id}/links/{kind}", s.calendarH.LinkStatus)
	mux.HandleFunc("POST /api/calendars/{id}/links/{kind}/enable", s.calendarH.EnableLink)
	mux.HandleFunc("POST /api/calendars/{id}/links/{kind}/disable", s.calendarH.DisableLink)
	mux.HandleFunc("POST /api/calendars/{id}/links/{kind}/claim", s.calendarH.ClaimLink)

	// Grants and subscriptions
	mux.HandleFunc("GET /api/calendars/{id}/grants", s.calendarH.Grants)
	mux.HandleFunc("DELETE /api/calendars/{id}/grants/{user_id}/{role}", s.calendarH.RevokeGrant)
	mux.HandleFunc("POST /api/calendars/{id}/subscription", s.calendarH.Subscribe)
	mux.HandleFunc("DELETE /api/calendars/{id}/subscription", s.calendarH.Unsubscribe)
	mux.HandleFunc("GET /api/calendars/{id}/subscribers", s.calendarH.Subscribers)
	mux.HandleFunc("GET /api/subscriptions", s.calendarH.Subscriptions)

	// Calendar events
	mux.HandleFunc("POST /api/calendars/{id}/events", s.eventH.Create)
	mux.HandleFunc("GET /api/calendars/{id}/events", s.eventH.List)
	mux.HandleFunc("DELETE /api/calendars/{id}/events/{event_id}", s.eventH.Delete)

	// Groups
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups/{id}/members", s.groupH.Members)
	mux.HandleFunc("POST /api/groups/{id}/members", s.groupH.AddMember)
	mux.HandleFunc("DELETE /api/groups/{id}/members/{user_id}", s.groupH.RemoveMember)

	// Polls
	mux.HandleFunc("POST /api/polls", s.pollH.Create)
	mux.HandleFunc("GET /api/polls", s.pollH.List)
	mux.HandleFunc("GET /api/polls/{id}", s.pollH.Status)
	mux.HandleFunc("POST /api/polls/{id}/invite", s.pollH.Invite)
	mux.HandleFunc("POST /api/polls/{id}/invite-group", s.pollH.InviteGroup)
	mux.HandleFunc("GET /api/polls/{id}/invitations", s.pollH.Invitations)
	mux.HandleFunc("GET /api/polls/{id}/votes", s.pollH.Votes)
	mux.HandleFunc("POST /api/polls/{id}/votes", s.pollH.Vote)
	mux.HandleFunc("POST /api/polls/{id}/confirm", s.pollH.Confirm)
	mux.HandleFunc("POST /api/polls/{id}/cancel", s.pollH.Cancel)

	// Live poll updates
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins))
}
